package model

// DiagnosticLimit 诊断文本尾部截断长度
//
// 限制回注到下一次生成尝试的反馈体积
const DiagnosticLimit = 500

// ValidationVerdict 验证结论
//
// 每次执行沙盒调用恰好产生一个结论，产生后不可变。
// OK 为 true 时 Diagnostic 携带简短成功摘要而非日志。
type ValidationVerdict struct {
	OK         bool   `json:"ok"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	Diagnostic string `json:"diagnostic"`
}

// SuccessVerdict 构造成功结论
func SuccessVerdict(exitCode int, summary string) ValidationVerdict {
	return ValidationVerdict{
		OK:         true,
		ExitCode:   &exitCode,
		Diagnostic: summary,
	}
}

// FailureVerdict 构造失败结论，诊断文本按尾部 500 字符截断
func FailureVerdict(exitCode *int, diagnostic string) ValidationVerdict {
	return ValidationVerdict{
		OK:         false,
		ExitCode:   exitCode,
		Diagnostic: TruncateDiagnostic(diagnostic),
	}
}

// TruncateDiagnostic 保留输出末尾 DiagnosticLimit 个字符
func TruncateDiagnostic(s string) string {
	if len(s) <= DiagnosticLimit {
		return s
	}
	return s[len(s)-DiagnosticLimit:]
}
