// Package config loads scanner configuration from a TOML file with
// environment variable overrides, and initializes structured logging.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kamikazechaser/common/logg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// envDebug enables debug logging when set
	envDebug = "DEBUG"
	// envDev enables development mode (human-readable logs) when set
	envDev = "DEV"
	// envPrefix is the prefix for environment variables that override config
	envPrefix = "SCANNER_"
	// envSeparator is used to split array values in environment variables
	envSeparator = " "
	// envNestedSeparator is used to represent nested config keys in environment variables
	envNestedSeparator = "__"
)

// Config is the scanner's full configuration surface.
type Config struct {
	RPC       RPCConfig
	Cache     CacheConfig
	Decryptor DecryptorConfig
	API       APIConfig
}

// RPCConfig configures the outbound RPC layer.
type RPCConfig struct {
	Endpoints  []string      // ordered: primary first, then fallbacks
	RateLimit  int           // calls per window, shared across endpoints
	MaxRetries int           // total attempts per call per endpoint
	Timeout    time.Duration // per-request timeout
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend string // memory | bolt | postgres | clickhouse
	DSN     string // postgres / clickhouse connection string
	Path    string // bolt database file
}

// DecryptorConfig locates the decryption capability.
type DecryptorConfig struct {
	Bin string
}

// APIConfig configures the inbound HTTP API.
type APIConfig struct {
	Listen string
}

// InitLogger initializes and returns a structured logger based on environment variables.
// DEBUG: enables debug level logging
// DEV: enables debug level logging with human-readable format
func InitLogger() *slog.Logger {
	loggOpts := logg.LoggOpts{
		FormatType: logg.Logfmt,
		LogLevel:   slog.LevelInfo,
	}

	if os.Getenv(envDebug) != "" {
		loggOpts.LogLevel = slog.LevelDebug
	}

	if os.Getenv(envDev) != "" {
		loggOpts.LogLevel = slog.LevelDebug
		loggOpts.FormatType = logg.Human
	}

	return logg.NewLogg(loggOpts)
}

// InitConfig loads configuration from a TOML file and environment variables.
// Environment variables prefixed with SCANNER_ override file values.
// Nested keys use double underscores (e.g., SCANNER_RPC__RATE_LIMIT); array
// values are space-separated strings.
func InitConfig(confFilePath string) (*koanf.Koanf, error) {
	ko := koanf.New(".")

	confFile := file.Provider(confFilePath)
	if err := ko.Load(confFile, toml.Parser()); err != nil {
		return nil, fmt.Errorf("load configuration file %s: %w", confFilePath, err)
	}

	err := ko.Load(env.ProviderWithValue(envPrefix, ".", func(s string, v string) (string, interface{}) {
		key := strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, envPrefix)),
			envNestedSeparator,
			".",
		)

		if strings.Contains(v, envSeparator) {
			return key, strings.Split(v, envSeparator)
		}

		return key, v
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}

	return ko, nil
}

// FromKoanf materializes a validated Config from loaded keys, applying
// defaults for everything optional.
func FromKoanf(ko *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		RPC: RPCConfig{
			Endpoints:  ko.Strings("rpc.endpoints"),
			RateLimit:  ko.Int("rpc.rate_limit"),
			MaxRetries: ko.Int("rpc.max_retries"),
			Timeout:    ko.Duration("rpc.timeout"),
		},
		Cache: CacheConfig{
			Backend: ko.String("cache.backend"),
			DSN:     ko.String("cache.dsn"),
			Path:    ko.String("cache.path"),
		},
		Decryptor: DecryptorConfig{
			Bin: ko.String("decryptor.bin"),
		},
		API: APIConfig{
			Listen: ko.String("api.listen"),
		},
	}

	if len(cfg.RPC.Endpoints) == 0 {
		return nil, fmt.Errorf("rpc.endpoints must list at least one endpoint")
	}
	if cfg.RPC.RateLimit <= 0 {
		cfg.RPC.RateLimit = 20
	}
	if cfg.RPC.MaxRetries <= 0 {
		cfg.RPC.MaxRetries = 3
	}
	if cfg.RPC.Timeout <= 0 {
		cfg.RPC.Timeout = 30 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "bolt":
		if cfg.Cache.Path == "" {
			return nil, fmt.Errorf("cache.path is required for the bolt backend")
		}
	case "postgres", "clickhouse":
		if cfg.Cache.DSN == "" {
			return nil, fmt.Errorf("cache.dsn is required for the %s backend", cfg.Cache.Backend)
		}
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Decryptor.Bin == "" {
		return nil, fmt.Errorf("decryptor.bin must point at the decryption binary")
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = ":8080"
	}
	return cfg, nil
}
