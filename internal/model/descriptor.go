// Package model 定义核心数据模型
//
// 包含蓝图生成与验证流程使用的全部数据结构：
//   - descriptor.go: 技术栈描述符（TechnologyDescriptor）
//   - artifact.go: 脚本产物（ScriptArtifact）
//   - verdict.go: 验证结论（ValidationVerdict）
//   - attempt.go: 编排动作与尝试状态（Action, AttemptState）
package model

import (
	"fmt"
	"strings"
)

// KeySeparator 描述符三元组拼接分隔符
// 同时用于持久化路径和容器命名，不可更改
const KeySeparator = "-"

// TechnologyDescriptor 技术栈描述符
//
// 标识一个目标技术栈的不可变三元组。构造后只读，
// 三个字段共同构成持久化和容器命名的稳定键。
type TechnologyDescriptor struct {
	Language       string `json:"language" yaml:"language"`
	Version        string `json:"version" yaml:"version"`
	PackageManager string `json:"package_manager" yaml:"package_manager"`
}

// NewDescriptor 创建技术栈描述符
// 三个字段均不能为空
func NewDescriptor(language, version, packageManager string) (TechnologyDescriptor, error) {
	d := TechnologyDescriptor{
		Language:       language,
		Version:        version,
		PackageManager: packageManager,
	}
	if err := d.Validate(); err != nil {
		return TechnologyDescriptor{}, err
	}
	return d, nil
}

// Validate 校验描述符完整性
func (d TechnologyDescriptor) Validate() error {
	if strings.TrimSpace(d.Language) == "" {
		return fmt.Errorf("descriptor language is required")
	}
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("descriptor version is required")
	}
	if strings.TrimSpace(d.PackageManager) == "" {
		return fmt.Errorf("descriptor package_manager is required")
	}
	return nil
}

// Key 返回稳定键，如 "python-3.11-pip"
func (d TechnologyDescriptor) Key() string {
	return strings.Join([]string{d.Language, d.Version, d.PackageManager}, KeySeparator)
}

// String 人类可读形式
func (d TechnologyDescriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Language, d.Version, d.PackageManager)
}
