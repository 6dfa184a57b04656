// Package repository 脚本仓库测试
package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"blueprint-forge/internal/model"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	return New(t.TempDir(), "Blueprint Forge", "1.0.0")
}

func descriptor(t *testing.T) model.TechnologyDescriptor {
	t.Helper()
	d, err := model.NewDescriptor("python", "3.11", "pip")
	require.NoError(t, err)
	return d
}

func TestWriteRead(t *testing.T) {
	repo := testRepo(t)
	d := descriptor(t)

	script := "#!/bin/bash\nset -e\necho installing"
	artifact, err := repo.Write(d, script)
	require.NoError(t, err)
	assert.Equal(t, d, artifact.Descriptor)
	assert.Equal(t, script, artifact.Content)
	assert.Equal(t, repo.ScriptPath(d), artifact.Path)

	got, err := repo.Read(d)
	require.NoError(t, err)
	assert.Equal(t, script, got)
}

func TestWriteIdempotentAndReplacing(t *testing.T) {
	repo := testRepo(t)
	d := descriptor(t)

	// 重复写入相同内容幂等
	_, err := repo.Write(d, "echo one")
	require.NoError(t, err)
	_, err = repo.Write(d, "echo one")
	require.NoError(t, err)
	got, err := repo.Read(d)
	require.NoError(t, err)
	assert.Equal(t, "echo one", got)

	// 不同内容整体替换，不做合并
	_, err = repo.Write(d, "echo two")
	require.NoError(t, err)
	got, err = repo.Read(d)
	require.NoError(t, err)
	assert.Equal(t, "echo two", got)
}

func TestReadNotFound(t *testing.T) {
	repo := testRepo(t)
	d := descriptor(t)

	_, err := repo.Read(d)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	repo := testRepo(t)
	d := descriptor(t)

	ok, err := repo.Exists(d)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Write(d, "echo hi")
	require.NoError(t, err)

	ok, err = repo.Exists(d)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPathDerivation(t *testing.T) {
	repo := New("setup", "a", "1.0.0")
	d := descriptor(t)

	// 路径由描述符三字段以固定分隔符拼接
	assert.Equal(t, filepath.Join("setup", "python-3.11-pip"), repo.Dir(d))
	assert.Equal(t, filepath.Join("setup", "python-3.11-pip", "run.sh"), repo.ScriptPath(d))
}

func TestWriteBlueprintMeta(t *testing.T) {
	repo := testRepo(t)
	d := descriptor(t)

	_, err := repo.Write(d, "echo hi")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(repo.Dir(d), "blueprint.yml"))
	require.NoError(t, err)

	var meta model.BlueprintMeta
	require.NoError(t, yaml.Unmarshal(data, &meta))
	assert.Equal(t, "python-3.11-pip", meta.Name)
	assert.Equal(t, "1.0.0", meta.Version)
	assert.Equal(t, "Blueprint Forge", meta.Author)
	assert.Contains(t, meta.Description, "python 3.11")
}
