package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:8090", cfg.EngineURL)
	assert.Equal(t, "", cfg.Token)
	assert.Equal(t, "table", cfg.Output)
}

func TestLoad_NoConfigFile(t *testing.T) {
	// No profile on disk, defaults apply
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8090", cfg.EngineURL)
	assert.Equal(t, "table", cfg.Output)
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `engine_url: https://engine.clearline.example.com
token: test-token-123
output: json
`
	err := os.WriteFile(configPath, []byte(configContent), 0600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://engine.clearline.example.com", cfg.EngineURL)
	assert.Equal(t, "test-token-123", cfg.Token)
	assert.Equal(t, "json", cfg.Output)
}

func TestLoad_PartialConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("token: only-a-token\n"), 0600)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Unset keys fall back to defaults
	assert.Equal(t, "only-a-token", cfg.Token)
	assert.Equal(t, "http://localhost:8090", cfg.EngineURL)
	assert.Equal(t, "table", cfg.Output)
}

func TestLoad_WithEnvironmentOverrides(t *testing.T) {
	t.Setenv("CLINE_ENGINE_URL", "http://env-engine:9000")
	t.Setenv("CLINE_TOKEN", "env-token")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://env-engine:9000", cfg.EngineURL)
	assert.Equal(t, "env-token", cfg.Token)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("engine_url: http://file-engine:8090\n"), 0600)
	require.NoError(t, err)

	t.Setenv("CLINE_ENGINE_URL", "http://env-engine:9000")

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://env-engine:9000", cfg.EngineURL)
}

func TestLoad_UnreadableExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	err := os.WriteFile(configPath, []byte("engine_url: [unterminated\n"), 0600)
	require.NoError(t, err)

	_, err = Load(configPath)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}
