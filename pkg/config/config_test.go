package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:8780", cfg.Listen)
	assert.Equal(t, 19000, cfg.BasePort)
	assert.Equal(t, 20, cfg.MaxInstances)
	assert.Equal(t, 18789, cfg.ContainerPort)
	assert.Equal(t, "openclaw:local", cfg.Image)
	assert.Equal(t, 60*time.Second, cfg.ReconcilePeriod)
	assert.Empty(t, cfg.AuthToken)
}

func TestYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_port: 20000\nmax_instances: 5\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20000, cfg.BasePort)
	assert.Equal(t, 5, cfg.MaxInstances)
	assert.Equal(t, "debug", cfg.LogLevel)
	// untouched keys keep defaults
	assert.Equal(t, "openclaw:local", cfg.Image)
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "launcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tailscale_ip: 10.0.0.1\n"), 0o644))

	t.Setenv("TAILSCALE_IP", "100.64.0.9")
	t.Setenv("LAUNCHER_TOKEN", "sekrit")
	t.Setenv("LAUNCHER_MAX_INSTANCES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "100.64.0.9", cfg.TailscaleIP)
	assert.Equal(t, "sekrit", cfg.AuthToken)
	assert.Equal(t, 3, cfg.MaxInstances)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
