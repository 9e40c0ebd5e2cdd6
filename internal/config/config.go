// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions accept context.Context as the first parameter.
// - Validation failures wrap ErrInvalidConfig; source failures wrap ErrLoadConfig.
package config

import (
	"context"
	"time"

	"github.com/okian/helio/internal/adapters/remote"
	"github.com/okian/helio/internal/adapters/remote/jsoc"
	"github.com/okian/helio/internal/adapters/remote/swpc"
	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/adapters/worker"
	"github.com/okian/helio/internal/domain/availability"
	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/dedupe"
	"github.com/okian/helio/internal/domain/slot"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json records.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DedupeSize bounds the memo of slots known to be stored.
	DedupeSize int `koanf:"dedupe_size"`

	Storage Storage `koanf:"storage"`
	Ingest  Ingest  `koanf:"ingest"`
	Oracle  Oracle  `koanf:"oracle"`
	Remote  Remote  `koanf:"remote"`
	Regions Regions `koanf:"regions"`
	Imagery Imagery `koanf:"imagery"`
}

// Storage selects the persistence driver.
type Storage struct {
	// Driver is one of sqlite, postgres, clickhouse, memory.
	Driver string `koanf:"driver"`
	// DSN is a file path for sqlite, a connection string for postgres and
	// host:port for clickhouse.
	DSN                string `koanf:"dsn"`
	ClickHouseDatabase string `koanf:"clickhouse_database"`
}

// Ingest tunes the imagery loop and extractor.
type Ingest struct {
	Scale             string        `koanf:"scale"`
	Lookback          time.Duration `koanf:"lookback"`
	IdleInterval      time.Duration `koanf:"idle_interval"`
	RetryDelay        time.Duration `koanf:"retry_delay"`
	UmbraThreshold    float64       `koanf:"umbra_threshold"`
	PenumbraThreshold float64       `koanf:"penumbra_threshold"`
}

// Oracle tunes the latest-slot cache.
type Oracle struct {
	TTL        time.Duration `koanf:"ttl"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// Remote holds upstream endpoints.
type Remote struct {
	JSOCLatestURL    string        `koanf:"jsoc_latest_url"`
	JSOCImageBaseURL string        `koanf:"jsoc_image_base_url"`
	SWPCRegionsURL   string        `koanf:"swpc_regions_url"`
	Timeout          time.Duration `koanf:"timeout"`
}

// Regions tunes the region job.
type Regions struct {
	Enabled    bool          `koanf:"enabled"`
	Interval   time.Duration `koanf:"interval"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// Imagery toggles the imagery loop.
type Imagery struct {
	Enabled bool `koanf:"enabled"`
}

// New creates a Config with defaults. The context is accepted to follow the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Addr:       ":9080",
		DedupeSize: dedupe.DefaultMaxSize,
		Storage: Storage{
			Driver:             repository.DriverSQLite,
			DSN:                repository.DefaultSQLiteDSN,
			ClickHouseDatabase: repository.DefaultClickHouseDatabase,
		},
		Ingest: Ingest{
			Scale:             contour.Big.Label(),
			Lookback:          slot.DefaultLookback,
			IdleInterval:      worker.DefaultIdleInterval,
			RetryDelay:        worker.DefaultImageRetryDelay,
			UmbraThreshold:    contour.DefaultUmbraThreshold,
			PenumbraThreshold: contour.DefaultPenumbraThreshold,
		},
		Oracle: Oracle{
			TTL:        availability.DefaultTTL,
			RetryDelay: availability.DefaultRetryDelay,
		},
		Remote: Remote{
			JSOCLatestURL:    jsoc.DefaultLatestURL,
			JSOCImageBaseURL: jsoc.DefaultImageBaseURL,
			SWPCRegionsURL:   swpc.DefaultRegionsURL,
			Timeout:          remote.DefaultTimeout,
		},
		Regions: Regions{
			Enabled:    true,
			Interval:   worker.DefaultRegionInterval,
			RetryDelay: worker.DefaultRegionRetryDelay,
		},
		Imagery: Imagery{Enabled: true},
	}
}
