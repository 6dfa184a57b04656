package runlock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-forge/internal/model"
)

func TestKey(t *testing.T) {
	d, err := model.NewDescriptor("python", "3.11", "pip")
	require.NoError(t, err)
	assert.Equal(t, "blueprint-forge:run:python-3.11-pip", Key(d))
}

func TestNew_BadURL(t *testing.T) {
	_, err := New("not-a-url", time.Minute)
	assert.Error(t, err)
}

func TestNew_DefaultTTL(t *testing.T) {
	l, err := New("redis://localhost:6379/0", 0)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, 10*time.Minute, l.ttl)
}
