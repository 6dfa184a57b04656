// Package repository 脚本产物持久化
//
// 以描述符稳定键组织目录结构：
//
//	<root>/<language>-<version>-<packageManager>/run.sh
//	<root>/<language>-<version>-<packageManager>/blueprint.yml
//
// Write 是整体覆盖语义：同一描述符的修复尝试替换全部内容，不做版本化。
package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"blueprint-forge/internal/model"
)

// ErrNotFound 脚本不存在
// 隔离业务层与底层文件系统错误
var ErrNotFound = errors.New("script not found")

// scriptName 脚本文件名
const scriptName = "run.sh"

// metaName 蓝图元数据文件名
const metaName = "blueprint.yml"

// Repository 文件系统脚本仓库
type Repository struct {
	root    string
	author  string
	version string
}

// New 创建仓库
func New(root, author, version string) *Repository {
	return &Repository{
		root:    root,
		author:  author,
		version: version,
	}
}

// Dir 描述符对应的蓝图目录
func (r *Repository) Dir(d model.TechnologyDescriptor) string {
	return filepath.Join(r.root, d.Key())
}

// ScriptPath 描述符对应的脚本路径
func (r *Repository) ScriptPath(d model.TechnologyDescriptor) string {
	return filepath.Join(r.Dir(d), scriptName)
}

// Write 持久化脚本内容并刷新蓝图元数据
//
// 返回的产物携带逻辑存储位置。重复写入同一内容是幂等的；
// 写入不同内容整体替换旧内容。
func (r *Repository) Write(d model.TechnologyDescriptor, content string) (model.ScriptArtifact, error) {
	dir := r.Dir(d)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return model.ScriptArtifact{}, fmt.Errorf("failed to create blueprint dir: %w", err)
	}

	path := r.ScriptPath(d)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return model.ScriptArtifact{}, fmt.Errorf("failed to write script: %w", err)
	}

	if err := r.writeMeta(d); err != nil {
		return model.ScriptArtifact{}, err
	}

	return model.ScriptArtifact{
		Descriptor: d,
		Content:    content,
		Path:       path,
	}, nil
}

// Read 读取脚本内容，缺失时返回 ErrNotFound
func (r *Repository) Read(d model.TechnologyDescriptor) (string, error) {
	data, err := os.ReadFile(r.ScriptPath(d))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, d.Key())
		}
		return "", fmt.Errorf("failed to read script: %w", err)
	}
	return string(data), nil
}

// Exists 检查脚本是否已持久化
func (r *Repository) Exists(d model.TechnologyDescriptor) (bool, error) {
	_, err := os.Stat(r.ScriptPath(d))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// writeMeta 写入 blueprint.yml
func (r *Repository) writeMeta(d model.TechnologyDescriptor) error {
	meta := model.BlueprintMeta{
		Name:    d.Key(),
		Version: r.version,
		Description: fmt.Sprintf("Installs %s %s if it is not already present in the runner environment.",
			d.Language, d.Version),
		Author: r.author,
	}

	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.Dir(d), metaName), data, 0644); err != nil {
		return fmt.Errorf("failed to write blueprint meta: %w", err)
	}
	return nil
}
