package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(`
server:
  port: 9090
engine:
  sweep_interval: 15m
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.staging.yaml"), []byte(`
engine:
  sweep_parallelism: 2
`), 0o644))

	t.Chdir(dir)
	t.Setenv("PAYOPS_REDIS_HOST", "redis.internal")

	cfg, err := Load("staging")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Server.Mode)
	assert.Equal(t, 15*time.Minute, cfg.Engine.SweepInterval)
	assert.Equal(t, 2, cfg.Engine.SweepParallelism)
	assert.Equal(t, 24*time.Hour, cfg.Engine.PaymentLinkTTL)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Same(t, cfg, Get())
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.EventBus.Driver)
	assert.Equal(t, 8, cfg.Engine.OutboxMaxAttempts)
}
