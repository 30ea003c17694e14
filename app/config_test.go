package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	saved := &Config{
		Listen:           "127.0.0.1:9999",
		Name:             "roundtrip",
		EventStore:       "memory",
		AllowedKinds:     []int{1, 5},
		MaxLimit:         123,
		MaxSubscriptions: 7,
	}
	require.NoError(t, saved.Save(path))

	loaded := &Config{}
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, "127.0.0.1:9999", loaded.Listen)
	assert.Equal(t, "roundtrip", loaded.Name)
	assert.Equal(t, "memory", loaded.EventStore)
	assert.Equal(t, []int{1, 5}, loaded.AllowedKinds)
	assert.Equal(t, 123, loaded.MaxLimit)
	assert.Equal(t, 7, loaded.MaxSubscriptions)
}

func TestConfigLoadMissingFile(t *testing.T) {
	c := &Config{Name: "untouched"}
	require.NoError(t, c.Load(filepath.Join(t.TempDir(), "config.json")))
	assert.Equal(t, "untouched", c.Name)
}

func TestNormalizeReason(t *testing.T) {
	assert.Equal(t, "invalid: bad id", normalizeReason("invalid: bad id", "error"))
	assert.Equal(t, "blocked: kind 4 not accepted here",
		normalizeReason("blocked: kind 4 not accepted here", "error"))
	assert.Equal(t, "error: something broke", normalizeReason("something broke", "error"))
	assert.Equal(t, "error: failed", normalizeReason("", "error"))
}
