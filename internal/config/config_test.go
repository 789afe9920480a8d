package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retrofeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "tables:\n  - post\n  - comment\nautoindex: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"post", "comment"}, cfg.Tables)
	assert.False(t, cfg.AutoindexEnabled())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "tables: []\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Tables)
	// autoindex unset means enabled
	assert.True(t, cfg.AutoindexEnabled())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/retrofeed.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "tables: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestAutoindexEnabledOnNil(t *testing.T) {
	var cfg *Config
	assert.True(t, cfg.AutoindexEnabled())
}
