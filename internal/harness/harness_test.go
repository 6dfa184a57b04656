// Package harness 验证沙盒测试
package harness

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-forge/internal/model"
	"blueprint-forge/pkg/docker"
	"blueprint-forge/pkg/logging"
)

// fakeRuntime 进程内容器运行时伪实现
//
// 记录每个生命周期调用的次数，用于验证销毁保证。
type fakeRuntime struct {
	pingErr    error
	createErr  error
	startErr   error
	copyErr    error
	execErrs   map[string]error        // 以命令首词为键
	execCodes  map[string]int          // 以命令首词为键的退出码
	scriptOut  string                  // 脚本执行输出
	scriptCode int                     // 脚本退出码
	scriptErr  error                   // ExecStreaming 返回的错误
	installOut string                  // 解释器安装输出

	gone      bool  // 销毁前容器已不存在
	existsErr error // ContainerExists 返回的错误

	pingCalls   int
	createCalls int
	startCalls  int
	stopCalls   int
	removeCalls int
	copyCalls   int
	existsCalls int
	execCmds    [][]string
	scriptRuns  int
	created     *docker.ContainerConfig
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		execErrs:  map[string]error{},
		execCodes: map[string]int{},
	}
}

func (f *fakeRuntime) Ping(ctx context.Context) error {
	f.pingCalls++
	return f.pingErr
}

func (f *fakeRuntime) CreateContainer(ctx context.Context, cfg *docker.ContainerConfig) (string, error) {
	f.createCalls++
	f.created = cfg
	if f.createErr != nil {
		return "", f.createErr
	}
	return "container-123", nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, id string) error {
	f.startCalls++
	return f.startErr
}

func (f *fakeRuntime) StopContainer(ctx context.Context, id string, timeout *int) error {
	f.stopCalls++
	return nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.removeCalls++
	return nil
}

func (f *fakeRuntime) ContainerExists(ctx context.Context, id string) (bool, error) {
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return !f.gone, nil
}

func (f *fakeRuntime) CopyArchiveTo(ctx context.Context, id, destPath string, archive io.Reader) error {
	f.copyCalls++
	return f.copyErr
}

func (f *fakeRuntime) Exec(ctx context.Context, id string, cmd []string) (*docker.ExecResult, error) {
	f.execCmds = append(f.execCmds, cmd)
	if err, ok := f.execErrs[cmd[0]]; ok {
		return nil, err
	}
	out := ""
	if cmd[0] == "apk" || cmd[0] == "/bin/sh" {
		out = f.installOut
	}
	return &docker.ExecResult{ExitCode: f.execCodes[cmd[0]], Output: out}, nil
}

func (f *fakeRuntime) ExecStreaming(ctx context.Context, id string, cmd []string, onLine func(string)) (*docker.ExecResult, error) {
	f.scriptRuns++
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	if onLine != nil {
		for _, line := range strings.Split(f.scriptOut, "\n") {
			onLine(line)
		}
	}
	return &docker.ExecResult{ExitCode: f.scriptCode, Output: f.scriptOut}, nil
}

func testHarness(rt ContainerRuntime, opts ...Option) *Harness {
	log := logging.New(logging.Config{Level: "error", Output: "stderr", Component: "harness-test"})
	return New(rt, log, opts...)
}

func TestValidateSuccess(t *testing.T) {
	rt := newFakeRuntime()
	rt.scriptOut = "Installing Python 3.11...\nPython 3.11 installed successfully"
	rt.scriptCode = 0

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "#!/bin/bash\necho ok", "alpine:latest", DefaultLimits())

	assert.True(t, v.OK)
	require.NotNil(t, v.ExitCode)
	assert.Equal(t, 0, *v.ExitCode)
	assert.Equal(t, "Validation successful. Exit code: 0", v.Diagnostic)

	// 每次调用恰好一个容器，成功路径也必须销毁
	assert.Equal(t, 1, rt.createCalls)
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.removeCalls)
}

func TestValidateScriptFailureTruncatesDiagnostic(t *testing.T) {
	rt := newFakeRuntime()
	rt.scriptOut = strings.Repeat("a", 300) + strings.Repeat("b", 400)
	rt.scriptCode = 2

	h := testHarness(rt)
	v := h.Validate(context.Background(), "node-18-npm", "#!/bin/bash\nexit 2", "debian:bookworm", DefaultLimits())

	assert.False(t, v.OK)
	require.NotNil(t, v.ExitCode)
	assert.Equal(t, 2, *v.ExitCode)
	// 诊断必须是捕获输出的尾部 500 字符
	assert.Len(t, v.Diagnostic, model.DiagnosticLimit)
	assert.Equal(t, rt.scriptOut[len(rt.scriptOut)-model.DiagnosticLimit:], v.Diagnostic)
}

func TestValidateTeardownOnExecError(t *testing.T) {
	rt := newFakeRuntime()
	rt.scriptErr = errors.New("connection reset during exec")

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	assert.False(t, v.OK)
	assert.Contains(t, v.Diagnostic, "script execution failed")
	// 容器启动后执行中断，停止/删除仍必须各调用恰好一次
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.removeCalls)
}

func TestTeardownSkipsMissingContainer(t *testing.T) {
	rt := newFakeRuntime()
	rt.gone = true

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	assert.True(t, v.OK)
	// 容器已不存在时不再发起停止/删除
	assert.Equal(t, 1, rt.existsCalls)
	assert.Equal(t, 0, rt.stopCalls)
	assert.Equal(t, 0, rt.removeCalls)
}

func TestTeardownProceedsOnInspectError(t *testing.T) {
	rt := newFakeRuntime()
	rt.existsErr = errors.New("inspect timed out")

	h := testHarness(rt)
	h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	// 存在性检查失败不能成为跳过销毁的理由
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.removeCalls)
}

func TestValidateEmptyScript(t *testing.T) {
	rt := newFakeRuntime()
	h := testHarness(rt)

	v := h.Validate(context.Background(), "python-3.11-pip", "   ", "alpine:latest", DefaultLimits())

	assert.False(t, v.OK)
	assert.Contains(t, v.Diagnostic, "empty")
	assert.Equal(t, 0, rt.pingCalls)
	assert.Equal(t, 0, rt.createCalls)
}

func TestValidateRuntimeUnavailable(t *testing.T) {
	rt := newFakeRuntime()
	rt.pingErr = errors.New("cannot connect to the docker daemon")

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	assert.False(t, v.OK)
	assert.Contains(t, v.Diagnostic, "container runtime unavailable")
	assert.Equal(t, 0, rt.createCalls)
}

func TestValidateTransferFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.copyErr = errors.New("broken pipe")

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	assert.False(t, v.OK)
	assert.Contains(t, v.Diagnostic, "script transfer failed")
	assert.Equal(t, 0, rt.scriptRuns)
	assert.Equal(t, 1, rt.stopCalls)
	assert.Equal(t, 1, rt.removeCalls)
}

func TestValidateInterpreterInstallFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.execCodes["apk"] = 1
	rt.installOut = "ERROR: unable to select packages: bash (no such package)"

	h := testHarness(rt)
	v := h.Validate(context.Background(), "python-3.11-pip", "echo hi", "alpine:latest", DefaultLimits())

	assert.False(t, v.OK)
	require.NotNil(t, v.ExitCode)
	assert.Equal(t, 1, *v.ExitCode)
	assert.Contains(t, v.Diagnostic, "interpreter install failed")
	// 安装失败短路，脚本不得执行
	assert.Equal(t, 0, rt.scriptRuns)
}

func TestInterpreterCommandByImageFamily(t *testing.T) {
	tests := []struct {
		name  string
		image string
		head  string
	}{
		{"alpine latest", "alpine:latest", "apk"},
		{"alpine pinned", "alpine:3.19", "apk"},
		{"debian", "debian:bookworm", "/bin/sh"},
		{"ubuntu treated as debian family", "ubuntu:22.04", "/bin/sh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newFakeRuntime()
			h := testHarness(rt)
			h.Validate(context.Background(), "k", "echo hi", tt.image, DefaultLimits())

			var installCmd []string
			for _, cmd := range rt.execCmds {
				if cmd[0] != "chmod" {
					installCmd = cmd
					break
				}
			}
			require.NotNil(t, installCmd)
			assert.Equal(t, tt.head, installCmd[0])
		})
	}
}

func TestValidateContainerConfig(t *testing.T) {
	rt := newFakeRuntime()
	h := testHarness(rt)

	limits := ResourceLimits{MemoryBytes: 256 * 1024 * 1024, Keepalive: 120 * time.Second}
	h.Validate(context.Background(), "go-1.22-mod", "echo hi", "alpine:latest", limits)

	require.NotNil(t, rt.created)
	assert.Contains(t, rt.created.Name, "blueprint-go-1.22-mod-")
	assert.Equal(t, "alpine:latest", rt.created.Image)
	assert.Equal(t, []string{"sleep", "120"}, rt.created.Cmd)
	assert.Equal(t, int64(256*1024*1024), rt.created.MemoryLimit)
}

func TestValidateStreamsLinesInOrder(t *testing.T) {
	rt := newFakeRuntime()
	rt.scriptOut = "line one\nline two\nline three"

	var seen []string
	h := testHarness(rt, WithLineObserver(func(line string) { seen = append(seen, line) }))
	h.Validate(context.Background(), "k", "echo hi", "alpine:latest", DefaultLimits())

	assert.Equal(t, []string{"line one", "line two", "line three"}, seen)
}

func TestScriptArchive(t *testing.T) {
	content := "#!/bin/bash\necho hello"
	buf, err := scriptArchive(content)
	require.NoError(t, err)

	tr := tar.NewReader(buf)
	hdr, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, "run.sh", hdr.Name)
	assert.Equal(t, int64(0755), hdr.Mode)

	body, err := io.ReadAll(tr)
	require.NoError(t, err)
	assert.Equal(t, content, string(body))

	_, err = tr.Next()
	assert.ErrorIs(t, err, io.EOF)
}
