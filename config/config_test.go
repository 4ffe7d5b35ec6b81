package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var envKeys = []string{
	"LISTEN", "AUTH_TOKEN", "LOG_MODE", "LOG_LEVEL", "MAX_UPLOAD_BYTES", "STORE_DRIVER",
	"DATABASE_URL", "CACHE_DRIVER", "REDIS_ADDR", "EXPORT_TTL_SECONDS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 60*time.Second, cfg.Cache.TTL)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chatgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
auth_token: file-token
store:
  driver: memory
cache:
  driver: redis
  redis_addr: localhost:6379
  ttl: 90s
`), 0o600))

	t.Setenv("AUTH_TOKEN", "env-token")
	t.Setenv("EXPORT_TTL_SECONDS", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 120*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 32<<20, cfg.MaxUploadBytes)
}

func TestLoadFileTTL(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chatgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  ttl: 90s\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, CacheMemory, cfg.Cache.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	cfg.Cache.Driver = CacheRedis
	cfg.Cache.TTL = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "mongo"`)
	assert.Contains(t, err.Error(), "redis_addr")
	assert.Contains(t, err.Error(), "ttl must be positive")
}

func TestPostgresNeedsDSN(t *testing.T) {
	cfg := Default()
	cfg.Store = StoreConfig{Driver: StorePostgres}
	assert.ErrorContains(t, cfg.Validate(), "needs a dsn")
}

func TestLogLevel(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chatgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	lvl, ok := cfg.Level()
	assert.True(t, ok)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	t.Setenv("LOG_LEVEL", "error")
	cfg, err = Load(path)
	require.NoError(t, err)
	lvl, ok = cfg.Level()
	assert.True(t, ok)
	assert.Equal(t, zapcore.ErrorLevel, lvl)

	_, ok = Default().Level()
	assert.False(t, ok)
}

func TestInvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "loud"
	assert.ErrorContains(t, cfg.Validate(), "log_level")
}
