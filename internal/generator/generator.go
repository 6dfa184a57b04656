// Package generator 生成协作方边界
//
// 协作方是产生与修复脚本文本的外部黑盒（远端生成服务、规则引擎
// 甚至人工流程）。编排器只依赖 Generate/Fix 两方法契约，对其内部
// 不做任何假设。
package generator

import (
	"context"
	"errors"

	"blueprint-forge/internal/model"
)

// ErrUnavailable 协作方在协议层失败（连接、超时、上游不可用）
//
// 与内容质量失败（Result.Success=false）不同：协议层失败不可恢复，
// 编排器收到后立即终止本次运行而不再重试。
var ErrUnavailable = errors.New("generator unavailable")

// Result 协作方单次调用结果
//
// Success=false 表示协作方自认产出失败，Message 携带原因；
// Success=true 时 Script 是完整脚本文本，Message 是简短说明。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Script  string `json:"script"`
}

// Generator 生成协作方接口
type Generator interface {
	// Generate 根据目标描述生成安装脚本
	Generate(ctx context.Context, goal string, d model.TechnologyDescriptor) (*Result, error)

	// Fix 根据修复指令（通常是上一次的诊断文本）修复脚本
	Fix(ctx context.Context, instruction string, d model.TechnologyDescriptor) (*Result, error)
}
