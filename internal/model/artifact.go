package model

// ScriptArtifact 脚本产物
//
// 生成协作方输出的安装脚本及其逻辑存储位置。
// 同一描述符的后续修复尝试整体覆盖 Content（覆盖而非版本化）。
type ScriptArtifact struct {
	Descriptor TechnologyDescriptor `json:"descriptor"`
	Content    string               `json:"content"`
	Path       string               `json:"path"`
}

// BlueprintMeta 蓝图元数据（blueprint.yml）
type BlueprintMeta struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
}
