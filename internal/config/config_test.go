package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.Monitor)
	assert.Empty(t, cfg.DefaultTarget)
}

func TestLoad_YAMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
port: 9090
default_target: oai@gpt-4o
monitor: false
role_map:
  opus: oai@gpt-4o
  haiku: ollama/llama3.2
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "oai@gpt-4o", cfg.DefaultTarget)
	assert.False(t, cfg.Monitor)
	assert.Equal(t, "oai@gpt-4o", cfg.RoleMap["opus"])
	assert.Equal(t, "ollama/llama3.2", cfg.RoleMap["haiku"])
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoad_EnvOverridesPort(t *testing.T) {
	t.Setenv("GATEWAY_PORT", "3000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
}

func TestLoad_EnvOverridesDefaultTarget(t *testing.T) {
	t.Setenv("GATEWAY_DEFAULT_TARGET", "openrouter/anthropic/claude-sonnet-4.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openrouter/anthropic/claude-sonnet-4.5", cfg.DefaultTarget)
}
