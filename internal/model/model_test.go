// Package model 核心数据模型测试
package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		lang    string
		version string
		pm      string
		wantErr bool
	}{
		{"valid python", "python", "3.11", "pip", false},
		{"valid node", "node", "18", "npm", false},
		{"missing language", "", "3.11", "pip", true},
		{"missing version", "python", "", "pip", true},
		{"missing package manager", "python", "3.11", "", true},
		{"whitespace only", "  ", "3.11", "pip", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDescriptor(tt.lang, tt.version, tt.pm)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lang, d.Language)
			assert.Equal(t, tt.version, d.Version)
			assert.Equal(t, tt.pm, d.PackageManager)
		})
	}
}

func TestDescriptorKey(t *testing.T) {
	d, err := NewDescriptor("python", "3.11", "pip")
	require.NoError(t, err)

	// 键必须稳定：持久化路径与容器命名都依赖它
	assert.Equal(t, "python-3.11-pip", d.Key())
	assert.Equal(t, d.Key(), d.Key())
}

func TestTruncateDiagnostic(t *testing.T) {
	short := "short output"
	assert.Equal(t, short, TruncateDiagnostic(short))

	long := strings.Repeat("x", 400) + strings.Repeat("y", 400)
	got := TruncateDiagnostic(long)
	assert.Len(t, got, DiagnosticLimit)
	// 截断必须取尾部切片
	assert.Equal(t, long[len(long)-DiagnosticLimit:], got)

	exact := strings.Repeat("z", DiagnosticLimit)
	assert.Equal(t, exact, TruncateDiagnostic(exact))
}

func TestFailureVerdictTruncates(t *testing.T) {
	code := 1
	v := FailureVerdict(&code, strings.Repeat("e", 1200))
	assert.False(t, v.OK)
	require.NotNil(t, v.ExitCode)
	assert.Equal(t, 1, *v.ExitCode)
	assert.Len(t, v.Diagnostic, DiagnosticLimit)
}

func TestSuccessVerdict(t *testing.T) {
	v := SuccessVerdict(0, "Validation successful. Exit code: 0")
	assert.True(t, v.OK)
	require.NotNil(t, v.ExitCode)
	assert.Equal(t, 0, *v.ExitCode)
	assert.Equal(t, "Validation successful. Exit code: 0", v.Diagnostic)
}

func TestAttemptState(t *testing.T) {
	s := NewAttemptState(3)
	assert.Equal(t, ActionGenerate, s.Action)
	assert.Equal(t, 1, s.AttemptNumber)
	assert.False(t, s.Exhausted())

	ctx := "command not found: npm"
	s.Advance(ActionValidate, nil)
	assert.Equal(t, 2, s.AttemptNumber)
	s.Advance(ActionFix, &ctx)
	require.NotNil(t, s.Context)
	assert.Equal(t, ctx, *s.Context)
	assert.Equal(t, 3, s.AttemptNumber)
	assert.False(t, s.Exhausted())

	s.Advance(ActionValidate, nil)
	assert.True(t, s.Exhausted())
}

func TestAttemptStateZeroBudget(t *testing.T) {
	s := NewAttemptState(0)
	assert.True(t, s.Exhausted())
}
