package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/domain/contour"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "HELIO_"
	// EnvConfigFile names the optional YAML file.
	EnvConfigFile = "HELIO_CONFIG"
)

var logLevels = []string{"", "debug", "info", "warn", "warning", "error"}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if HELIO_CONFIG is set
//  3. env (prefix HELIO_, "__" separates nested keys)
func Load(ctx context.Context) (*Config, error) {
	return LoadFile(ctx, os.Getenv(EnvConfigFile))
}

// LoadFile is Load with an explicit file path. An empty path skips the file layer.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// HELIO_STORAGE__DRIVER -> storage.driver, HELIO_LOG_LEVEL -> log_level.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Addr == "" {
		invalid("addr must not be empty")
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		invalid("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	if f := strings.ToLower(c.LogFormat); f != "" && f != "text" && f != "json" {
		invalid("log_format %q is not text or json", c.LogFormat)
	}
	if !slices.Contains(repository.Drivers, strings.ToLower(c.Storage.Driver)) {
		invalid("storage.driver %q is not one of %s", c.Storage.Driver, strings.Join(repository.Drivers, ", "))
	}
	if _, err := contour.ParseScale(c.Ingest.Scale); err != nil {
		invalid("ingest.scale: %v", err)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"ingest.umbra_threshold", c.Ingest.UmbraThreshold},
		{"ingest.penumbra_threshold", c.Ingest.PenumbraThreshold},
	} {
		if f.v < 0 || f.v > 1 {
			invalid("%s %v is outside [0, 1]", f.name, f.v)
		}
	}
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"ingest.lookback", c.Ingest.Lookback},
		{"ingest.idle_interval", c.Ingest.IdleInterval},
		{"ingest.retry_delay", c.Ingest.RetryDelay},
		{"oracle.ttl", c.Oracle.TTL},
		{"oracle.retry_delay", c.Oracle.RetryDelay},
		{"remote.timeout", c.Remote.Timeout},
		{"regions.interval", c.Regions.Interval},
		{"regions.retry_delay", c.Regions.RetryDelay},
	} {
		if f.d <= 0 {
			invalid("%s must be positive", f.name)
		}
	}
	return errors.Join(errs...)
}
