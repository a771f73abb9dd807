package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsNonEmpty(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.QueuePath)
	assert.NotEmpty(t, cfg.RunPath)
	assert.EqualValues(t, 604800, cfg.ControllerTimeoutDefault)
	assert.False(t, cfg.ExposeAgentEnv)
}

func TestLoadWithOverrides(t *testing.T) {
	cfg, err := Load("", Overrides{QueuePath: "/tmp/q", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/q", cfg.QueuePath)
	assert.True(t, cfg.Debug)
	// unset override fields fall back to defaults
	assert.NotEmpty(t, cfg.RunPath)
}

func TestLoadWithEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LMAP_QUEUE_PATH=/custom/queue\n"), 0o644))

	cfg, err := Load(envFile, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "/custom/queue", cfg.QueuePath)
}

func TestLoadWithYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "lmapd.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("queue_path: /yaml/queue\ndebug: true\n"), 0o644))

	cfg, err := Load("", Overrides{YAMLFile: yamlFile})
	require.NoError(t, err)
	assert.Equal(t, "/yaml/queue", cfg.QueuePath)
	assert.True(t, cfg.Debug)
}

func TestPathHelpers(t *testing.T) {
	cfg := Config{RunPath: "/run/lmapd", PIDFile: "p.pid", StatusFile: "s.state"}
	assert.Equal(t, "/run/lmapd/p.pid", cfg.PIDFilePath())
	assert.Equal(t, "/run/lmapd/s.state", cfg.StatusFilePath())
}
