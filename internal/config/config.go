// Package config manages the cored daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables, grounded on
// dantte-lp-gobfd's internal/config/config.go: a defaults-then-file-then-env
// layering loaded through koanf.Koanf, unmarshaled into a tagged struct, and
// checked by a dedicated Validate pass.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete cored configuration.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Session SessionConfig `koanf:"session"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics and health endpoints
	// (e.g. ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint.
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SessionConfig holds the session manager's tunables (spec.md Section 6:
// Configuration).
type SessionConfig struct {
	// MaxBufferedMessages bounds the buffered-message store.
	MaxBufferedMessages int `koanf:"max_buffered_messages"`

	// MetricHalflifeMilliseconds is retained for interface compatibility and
	// unused by current logic (spec.md Section 9's "retained dead code"
	// note).
	MetricHalflifeMilliseconds int `koanf:"metric_halflife_milliseconds"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			MaxBufferedMessages:        256,
			MetricHalflifeMilliseconds: 0,
		},
	}
}

// envPrefix is the environment variable prefix for cored configuration.
// Variables are named CORED_<section>_<key>, e.g. CORED_METRICS_ADDR.
const envPrefix = "CORED_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (CORED_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults. An empty path skips the file layer and
// returns defaults overlaid only by environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// envKeyMapper transforms CORED_METRICS_ADDR -> metrics.addr and
// CORED_SESSION_MAX_BUFFERED_MESSAGES -> session.max_buffered_messages.
// Strips the CORED_ prefix, lowercases, and replaces only the first _ (the
// section separator) with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":                        defaults.Metrics.Addr,
		"metrics.path":                        defaults.Metrics.Path,
		"log.level":                           defaults.Log.Level,
		"log.format":                          defaults.Log.Format,
		"session.max_buffered_messages":       defaults.Session.MaxBufferedMessages,
		"session.metric_halflife_milliseconds": defaults.Session.MetricHalflifeMilliseconds,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// Validation errors.
var (
	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")

	// ErrInvalidMaxBuffered indicates max_buffered_messages is negative.
	ErrInvalidMaxBuffered = errors.New("session.max_buffered_messages must be >= 0")
)

// Validate checks the configuration for logical errors.
func Validate(cfg *Config) error {
	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}
	if cfg.Session.MaxBufferedMessages < 0 {
		return ErrInvalidMaxBuffered
	}
	return nil
}

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
