package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Sources.Inventory.ResultCap)
	assert.Equal(t, 100, cfg.Sources.Log.ResultCap)
	assert.Equal(t, LogBackendSQLite, cfg.Sources.Log.Backend)
	assert.Equal(t, 30*time.Second, cfg.Sources.Log.Timeout)
	assert.Equal(t, 4, cfg.Hunt.MaxConcurrentQueries)
	assert.Equal(t, filepath.Join("./data", "iochunt.db"), cfg.GetSQLitePath())
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.NATS.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_paths:
  data_dir: /var/lib/iochunt
hunt:
  max_concurrent_queries: 8
sources:
  inventory:
    result_cap: 250
    timeout: 10s
  log:
    backend: clickhouse
    result_cap: 50
clickhouse:
  addr: ch.internal:9000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Hunt.MaxConcurrentQueries)
	assert.Equal(t, 250, cfg.Sources.Inventory.ResultCap)
	assert.Equal(t, 10*time.Second, cfg.Sources.Inventory.Timeout)
	assert.Equal(t, LogBackendClickHouse, cfg.Sources.Log.Backend)
	assert.Equal(t, 50, cfg.Sources.Log.ResultCap)
	assert.Equal(t, "ch.internal:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, filepath.Join("/var/lib/iochunt", "iochunt.db"), cfg.GetSQLitePath())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IOCHUNT_LOG_BACKEND", "mongodb")
	t.Setenv("IOCHUNT_SQLITE_PATH", "custom/hunt.db")
	t.Setenv("IOCHUNT_HUNT_MAX_CONCURRENT_HUNTS", "7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, LogBackendMongoDB, cfg.Sources.Log.Backend)
	assert.Equal(t, "custom/hunt.db", cfg.GetSQLitePath())
	assert.Equal(t, 7, cfg.Hunt.MaxConcurrentHunts)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := LoadConfig("")
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.API.Port = 0 }, "invalid api port"},
		{"zero queries", func(c *Config) { c.Hunt.MaxConcurrentQueries = 0 }, "max_concurrent_queries"},
		{"zero inventory cap", func(c *Config) { c.Sources.Inventory.ResultCap = 0 }, "sources.inventory.result_cap"},
		{"zero log timeout", func(c *Config) { c.Sources.Log.Timeout = 0 }, "sources.log.timeout"},
		{"unknown backend", func(c *Config) { c.Sources.Log.Backend = "elastic" }, "unknown log backend"},
		{"bad mongo uri", func(c *Config) {
			c.Sources.Log.Backend = LogBackendMongoDB
			c.MongoDB.URI = "http://localhost"
		}, "invalid MongoDB URI"},
		{"redis without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid logging level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := *base
			tc.mutate(&cfg)
			err := validateConfig(&cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
