package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DATABASE_DRIVER", "")

	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Database.Persistent())
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, 60*time.Second, cfg.PriceCache.FreshTTL)
	assert.Equal(t, 900*time.Second, cfg.PriceCache.StaleTTL)
	assert.Equal(t, uint64(100_000_000), cfg.Rewards.ThresholdLamports)
}

func TestLoadConfigFrom_YAMLAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  mode: debug
database:
  driver: sqlite
  dsn: ./ledger.db
  query_timeout: 2s
rewards:
  threshold_lamports: 1000
price_cache:
  fresh_ttl: 30s
  stale_ttl: 10m
`)
	t.Setenv("DATABASE_DSN", "/tmp/override.db")
	t.Setenv("PRICE_FEED_API_KEY", "secret")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/override.db", cfg.Database.DSN)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, uint64(1000), cfg.Rewards.ThresholdLamports)
	assert.Equal(t, 30*time.Second, cfg.PriceCache.FreshTTL)
	assert.Equal(t, 10*time.Minute, cfg.PriceCache.StaleTTL)
	assert.Equal(t, "secret", cfg.PriceFeed.APIKey)
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")

	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"stale shorter than fresh", "price_cache:\n  fresh_ttl: 10m\n  stale_ttl: 1m\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFrom(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
