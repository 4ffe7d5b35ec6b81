// Package config loads server settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the server configuration.
type Config struct {
	Listen    string `yaml:"listen"`
	AuthToken string `yaml:"auth_token"`
	LogMode   string `yaml:"log_mode"`
	// Empty keeps the mode's default level.
	LogLevel string `yaml:"log_level"`

	// Upper bound on an import upload, in bytes.
	MaxUploadBytes int `yaml:"max_upload_bytes"`

	Store StoreConfig `yaml:"store"`
	Cache CacheConfig `yaml:"cache"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// File path for sqlite, connection URL for postgres.
	DSN string `yaml:"dsn"`
}

type CacheConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Listen:         ":3000",
		LogMode:        "dev",
		MaxUploadBytes: 32 << 20,
		Store: StoreConfig{
			Driver: StoreSQLite,
			DSN:    "chatgraph.db",
		},
		Cache: CacheConfig{
			Driver: CacheMemory,
			TTL:    60 * time.Second,
		},
	}
}

// Load reads path (skipped when empty) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Listen = getEnv("LISTEN", c.Listen)
	c.AuthToken = getEnv("AUTH_TOKEN", c.AuthToken)
	c.LogMode = getEnv("LOG_MODE", c.LogMode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MaxUploadBytes = getEnvInt("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("DATABASE_URL", c.Store.DSN)
	c.Cache.Driver = getEnv("CACHE_DRIVER", c.Cache.Driver)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.TTL = time.Duration(getEnvInt("EXPORT_TTL_SECONDS", int(c.Cache.TTL/time.Second))) * time.Second
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Listen) == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store %s needs a dsn", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache redis needs redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache driver %q", c.Cache.Driver))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the configured log level and whether one was set.
// It assumes Validate has passed.
func (c *Config) Level() (zapcore.Level, bool) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	return lvl, err == nil
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
