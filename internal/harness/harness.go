package harness

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"blueprint-forge/internal/metrics"
	"blueprint-forge/internal/model"
	"blueprint-forge/pkg/docker"
	"blueprint-forge/pkg/logging"
)

// scriptDir 脚本在容器内的存放目录
const scriptDir = "/tmp"

// ContainerRuntime 容器运行时接口
//
// 沙盒只依赖这组操作，生产实现为 pkg/docker.Client，
// 测试使用进程内伪实现。
type ContainerRuntime interface {
	// Ping 检查运行时连接
	Ping(ctx context.Context) error

	// CreateContainer 创建容器
	CreateContainer(ctx context.Context, cfg *docker.ContainerConfig) (string, error)

	// StartContainer 启动容器
	StartContainer(ctx context.Context, containerID string) error

	// StopContainer 停止容器
	StopContainer(ctx context.Context, containerID string, timeout *int) error

	// RemoveContainer 删除容器
	RemoveContainer(ctx context.Context, containerID string, force bool) error

	// ContainerExists 检查容器是否存在
	ContainerExists(ctx context.Context, containerID string) (bool, error)

	// CopyArchiveTo 将 tar 归档传入容器
	CopyArchiveTo(ctx context.Context, containerID, destPath string, archive io.Reader) error

	// Exec 执行命令并缓冲输出
	Exec(ctx context.Context, containerID string, cmd []string) (*docker.ExecResult, error)

	// ExecStreaming 执行命令并逐行回调输出
	ExecStreaming(ctx context.Context, containerID string, cmd []string, onLine func(string)) (*docker.ExecResult, error)
}

// ResourceLimits 单次验证的资源边界
//
// Keepalive 是容器的保活上限（sleep 命令时长），必须低于
// 调用方的任何超时，保证执行悬挂时容器也不会活过本次调用。
type ResourceLimits struct {
	MemoryBytes int64
	Keepalive   time.Duration
}

// DefaultLimits 默认资源边界：512MB 内存、5 分钟保活
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MemoryBytes: 512 * 1024 * 1024,
		Keepalive:   5 * time.Minute,
	}
}

// Harness 脚本验证沙盒
type Harness struct {
	runtime ContainerRuntime
	log     *logging.Logger
	metrics *metrics.Metrics
	onLine  func(string)
}

// Option 沙盒可选配置
type Option func(*Harness)

// WithMetrics 启用指标上报
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Harness) { h.metrics = m }
}

// WithLineObserver 替换脚本输出观察者（默认写入日志）
func WithLineObserver(fn func(string)) Option {
	return func(h *Harness) { h.onLine = fn }
}

// New 创建沙盒
func New(rt ContainerRuntime, log *logging.Logger, opts ...Option) *Harness {
	h := &Harness{
		runtime: rt,
		log:     log,
	}
	for _, o := range opts {
		o(h)
	}
	if h.onLine == nil {
		h.onLine = log.ScriptLine
	}
	return h
}

// Validate 在一次性容器中执行脚本并返回验证结论
//
// key 是描述符稳定键，参与容器命名；baseImage 决定解释器安装方式
// （Alpine 族 apk / Debian 族 apt-get）。任何沙盒内部错误都被归一化为
// OK=false 的结论，诊断文本保留失败分类；本方法不向调用方抛错。
func (h *Harness) Validate(ctx context.Context, key, script, baseImage string, limits ResourceLimits) model.ValidationVerdict {
	start := time.Now()
	verdict := h.validate(ctx, key, script, baseImage, limits)
	h.log.VerdictLog(key, verdict.OK, verdict.ExitCode, time.Since(start))
	if h.metrics != nil {
		h.metrics.ObserveValidation(baseImage, verdict.OK, time.Since(start))
	}
	return verdict
}

func (h *Harness) validate(ctx context.Context, key, script, baseImage string, limits ResourceLimits) model.ValidationVerdict {
	if strings.TrimSpace(script) == "" {
		return model.FailureVerdict(nil, "script content is empty")
	}

	if err := h.runtime.Ping(ctx); err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: %v", ErrRuntimeUnavailable, err))
	}

	keepalive := limits.Keepalive
	if keepalive <= 0 {
		keepalive = DefaultLimits().Keepalive
	}

	name := fmt.Sprintf("blueprint-%s-%d", key, time.Now().UnixNano())
	containerID, err := h.runtime.CreateContainer(ctx, &docker.ContainerConfig{
		Name:        name,
		Image:       baseImage,
		Cmd:         []string{"sleep", strconv.Itoa(int(keepalive.Seconds()))},
		MemoryLimit: limits.MemoryBytes,
	})
	if err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: create container: %v", ErrRuntimeUnavailable, err))
	}

	// 容器从这里起必须在任何退出路径上销毁，包括调用方已取消的情况
	defer h.teardown(containerID)

	if h.metrics != nil {
		h.metrics.ContainerStarted(baseImage)
	}

	if err := h.runtime.StartContainer(ctx, containerID); err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: start container: %v", ErrRuntimeUnavailable, err))
	}

	log := h.log.WithContainerID(containerID).WithDescriptor(key)
	log.Info("Container started", "image", baseImage)

	archive, err := scriptArchive(script)
	if err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: %v", ErrTransfer, err))
	}
	if err := h.runtime.CopyArchiveTo(ctx, containerID, scriptDir, archive); err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: %v", ErrTransfer, err))
	}

	scriptPath := scriptDir + "/" + scriptFileName
	if _, err := h.runtime.Exec(ctx, containerID, []string{"chmod", "+x", scriptPath}); err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: chmod: %v", ErrTransfer, err))
	}

	// 解释器安装失败直接短路，带自身退出码和输出，不再执行脚本
	if verdict, ok := h.ensureInterpreter(ctx, containerID, baseImage, log); !ok {
		return verdict
	}

	log.Info("Executing run.sh with live logs")
	result, err := h.runtime.ExecStreaming(ctx, containerID, []string{"/bin/bash", scriptPath}, h.onLine)
	if err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: %v", ErrScriptExecution, err))
	}

	log.Info("Script exited", "exit_code", result.ExitCode)

	if result.ExitCode == 0 {
		return model.SuccessVerdict(0, fmt.Sprintf("Validation successful. Exit code: %d", result.ExitCode))
	}

	return model.FailureVerdict(&result.ExitCode, result.Output)
}

// ensureInterpreter 确保基础镜像内存在 bash
//
// 仅支持 Alpine 与 Debian 两个镜像族，未知镜像按 Debian 处理。
func (h *Harness) ensureInterpreter(ctx context.Context, containerID, baseImage string, log *logging.Logger) (model.ValidationVerdict, bool) {
	var installCmd []string
	if isAlpine(baseImage) {
		installCmd = []string{"apk", "add", "--no-cache", "bash"}
	} else {
		installCmd = []string{"/bin/sh", "-c", "apt-get update && apt-get install -y bash"}
	}

	log.Info("Installing interpreter", "cmd", strings.Join(installCmd, " "))

	result, err := h.runtime.Exec(ctx, containerID, installCmd)
	if err != nil {
		return model.FailureVerdict(nil, fmt.Sprintf("%v: %v", ErrInterpreterInstall, err)), false
	}
	if result.ExitCode != 0 {
		diag := fmt.Sprintf("%v: exit code %d: %s", ErrInterpreterInstall, result.ExitCode, result.Output)
		return model.FailureVerdict(&result.ExitCode, diag), false
	}
	return model.ValidationVerdict{}, true
}

// teardown 停止并删除容器
//
// 使用与调用方取消信号无关的上下文：销毁不以取消信号送达为前提。
func (h *Harness) teardown(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 容器可能已被外部清理（OOM kill 后的 --rm、运维脚本），先确认存在
	exists, err := h.runtime.ContainerExists(ctx, containerID)
	if err != nil {
		h.log.WithContainerID(containerID).WithError(err).Warn("Failed to inspect container before teardown")
	} else if !exists {
		return
	}

	stopTimeout := 5
	if err := h.runtime.StopContainer(ctx, containerID, &stopTimeout); err != nil {
		h.log.WithContainerID(containerID).WithError(err).Warn("Failed to stop container")
	}
	if err := h.runtime.RemoveContainer(ctx, containerID, true); err != nil {
		h.log.WithContainerID(containerID).WithError(err).Warn("Failed to remove container")
	}
}

// isAlpine 判断镜像是否属于 Alpine 族
func isAlpine(image string) bool {
	return strings.Contains(strings.ToLower(image), "alpine")
}
