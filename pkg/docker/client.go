// Package docker 封装 Docker API 客户端
//
// 使用官方 github.com/moby/moby/client 库
// 提供容器生命周期管理、归档传输与命令执行，用于脚本验证沙盒
package docker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
)

// ContainerConfig 容器配置
type ContainerConfig struct {
	Name        string   // 容器名称
	Image       string   // 镜像名称
	Cmd         []string // 启动命令（保活命令）
	MemoryLimit int64    // 内存上限（字节）
}

// ExecResult 命令执行结果
type ExecResult struct {
	ExitCode int    // 退出码
	Output   string // 合并后的标准输出/标准错误
}

// Client Docker客户端封装
type Client struct {
	cli *client.Client
}

// NewClient 创建Docker客户端
func NewClient() (*Client, error) {
	cli, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.cli.Close()
}

// Ping 检查Docker连接
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.cli.Ping(ctx, client.PingOptions{})
	return err
}

// CreateContainer 创建容器
func (c *Client) CreateContainer(ctx context.Context, cfg *ContainerConfig) (string, error) {
	opts := client.ContainerCreateOptions{
		Name:  cfg.Name,
		Image: cfg.Image,
		Config: &container.Config{
			Cmd:          cfg.Cmd,
			AttachStdout: true,
			AttachStderr: true,
		},
		HostConfig: &container.HostConfig{},
	}

	if cfg.MemoryLimit > 0 {
		opts.HostConfig.Resources = container.Resources{
			Memory: cfg.MemoryLimit,
		}
	}

	result, err := c.cli.ContainerCreate(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return result.ID, nil
}

// StartContainer 启动容器
func (c *Client) StartContainer(ctx context.Context, containerID string) error {
	_, err := c.cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{})
	return err
}

// StopContainer 停止容器
func (c *Client) StopContainer(ctx context.Context, containerID string, timeout *int) error {
	opts := client.ContainerStopOptions{}
	if timeout != nil {
		opts.Timeout = timeout
	}
	_, err := c.cli.ContainerStop(ctx, containerID, opts)
	return err
}

// RemoveContainer 删除容器
func (c *Client) RemoveContainer(ctx context.Context, containerID string, force bool) error {
	_, err := c.cli.ContainerRemove(ctx, containerID, client.ContainerRemoveOptions{
		Force:         force,
		RemoveVolumes: false,
	})
	return err
}

// ContainerExists 检查容器是否存在
func (c *Client) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	_, err := c.cli.ContainerInspect(ctx, containerID, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CopyArchiveTo 将 tar 归档传入容器指定目录
func (c *Client) CopyArchiveTo(ctx context.Context, containerID, destPath string, archive io.Reader) error {
	_, err := c.cli.CopyToContainer(ctx, containerID, client.CopyToContainerOptions{
		DestinationPath: destPath,
		Content:         archive,
	})
	if err != nil {
		return fmt.Errorf("failed to copy archive to container: %w", err)
	}
	return nil
}

// Exec 在容器中执行命令并缓冲全部输出
func (c *Client) Exec(ctx context.Context, containerID string, cmd []string) (*ExecResult, error) {
	execResult, err := c.cli.ExecCreate(ctx, containerID, client.ExecCreateOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := c.cli.ExecAttach(ctx, execResult.ID, client.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer attachResp.Close()

	output, err := io.ReadAll(attachResp.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspectResp, err := c.cli.ExecInspect(ctx, execResult.ID, client.ExecInspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &ExecResult{
		ExitCode: inspectResp.ExitCode,
		Output:   string(output),
	}, nil
}

// ExecStreaming 在容器中执行命令，逐行回调输出并累积全文
//
// onLine 按脚本输出顺序收到每一行；命令结束后返回退出码和完整输出。
func (c *Client) ExecStreaming(ctx context.Context, containerID string, cmd []string, onLine func(string)) (*ExecResult, error) {
	execResult, err := c.cli.ExecCreate(ctx, containerID, client.ExecCreateOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := c.cli.ExecAttach(ctx, execResult.ID, client.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec: %w", err)
	}
	defer attachResp.Close()

	var builder strings.Builder
	scanner := bufio.NewScanner(attachResp.Reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if onLine != nil {
			onLine(line)
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspectResp, err := c.cli.ExecInspect(ctx, execResult.ID, client.ExecInspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect exec: %w", err)
	}

	return &ExecResult{
		ExitCode: inspectResp.ExitCode,
		Output:   builder.String(),
	}, nil
}
