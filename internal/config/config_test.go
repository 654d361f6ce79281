package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsbridge/fsbridge/internal/cache"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "INFO", cfg.Global.LogLevel)
	assert.Equal(t, "text", cfg.Global.LogFormat)
	assert.Equal(t, cache.StrategyBlock, cfg.Cache.Strategy)
	assert.Equal(t, cache.DefaultBlockSize, cfg.Cache.BlockSize)
	assert.Equal(t, 30*time.Second, cfg.Listings.TTL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Registry.SkipCache)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	content := `
global:
  log_level: DEBUG
  log_format: json
cache:
  strategy: readahead
  readahead: 131072
listings:
  ttl: 10s
registry:
  skip_cache: true
retry:
  max_attempts: 5
  base_delay: 50ms
metrics:
  enabled: false
backends:
  s3:
    region: eu-west-1
    bucket: archive
`
	path := filepath.Join(t.TempDir(), "fsbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "DEBUG", cfg.Global.LogLevel)
	assert.Equal(t, "json", cfg.Global.LogFormat)
	assert.Equal(t, cache.StrategyReadahead, cfg.Cache.Strategy)
	assert.Equal(t, int64(131072), cfg.Cache.Readahead)
	assert.Equal(t, 10*time.Second, cfg.Listings.TTL)
	assert.True(t, cfg.Registry.SkipCache)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.BaseDelay)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "eu-west-1", cfg.Backends["s3"]["region"])
	assert.Equal(t, "archive", cfg.Backends["s3"]["bucket"])

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Missing(t *testing.T) {
	cfg := NewDefault()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FSBRIDGE_LOG_LEVEL", "WARN")
	t.Setenv("FSBRIDGE_CACHE_STRATEGY", "bytes")
	t.Setenv("FSBRIDGE_CACHE_BLOCK_SIZE", "1048576")
	t.Setenv("FSBRIDGE_LISTINGS_TTL", "5s")
	t.Setenv("FSBRIDGE_REGISTRY_SKIP_CACHE", "true")
	t.Setenv("FSBRIDGE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("FSBRIDGE_METRICS_ENABLED", "false")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "WARN", cfg.Global.LogLevel)
	assert.Equal(t, cache.StrategyBytes, cfg.Cache.Strategy)
	assert.Equal(t, int64(1048576), cfg.Cache.BlockSize)
	assert.Equal(t, 5*time.Second, cfg.Listings.TTL)
	assert.True(t, cfg.Registry.SkipCache)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestValidate_Rejections(t *testing.T) {
	mutate := func(fn func(*Configuration)) *Configuration {
		cfg := NewDefault()
		fn(cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  *Configuration
	}{
		{"bad log level", mutate(func(c *Configuration) { c.Global.LogLevel = "verbose" })},
		{"bad log format", mutate(func(c *Configuration) { c.Global.LogFormat = "xml" })},
		{"bad cache strategy", mutate(func(c *Configuration) { c.Cache.Strategy = "exotic" })},
		{"negative block size", mutate(func(c *Configuration) { c.Cache.BlockSize = -1 })},
		{"negative listings ttl", mutate(func(c *Configuration) { c.Listings.TTL = -time.Second })},
		{"zero retry attempts", mutate(func(c *Configuration) { c.Retry.MaxAttempts = 0 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestLoad_AppliesOverridesInOrder(t *testing.T) {
	content := "global:\n  log_level: DEBUG\n"
	path := filepath.Join(t.TempDir(), "fsbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("FSBRIDGE_LOG_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Global.LogLevel)
}
