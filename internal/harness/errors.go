// Package harness 脚本验证沙盒
//
// 在一次性容器中执行不可信安装脚本并产出结构化验证结论。
// 每次 Validate 调用恰好创建一个容器，调用结束前保证销毁。
package harness

import "errors"

// 失败分类。四类失败在沙盒边界全部归一化为
// ValidationVerdict{OK:false}，区别仅保留在诊断文本中。
var (
	// ErrRuntimeUnavailable 容器运行时不可达
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrTransfer 脚本无法传入执行环境
	ErrTransfer = errors.New("script transfer failed")

	// ErrInterpreterInstall 环境的包管理器无法安装解释器
	ErrInterpreterInstall = errors.New("interpreter install failed")

	// ErrScriptExecution 脚本执行返回非零退出码
	ErrScriptExecution = errors.New("script execution failed")
)
