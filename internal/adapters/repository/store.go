// Package repository persists observations and region reports.
//
// Four drivers implement Store: sqlite (default), postgres, clickhouse and
// an in-memory treap. All of them are safe for concurrent use.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"
)

// Driver names accepted by Open.
const (
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	DriverClickHouse = "clickhouse"
	DriverMemory     = "memory"
)

// Drivers lists the accepted driver names.
var Drivers = []string{DriverSQLite, DriverPostgres, DriverClickHouse, DriverMemory}

// ObservationStore holds one observation per slot.
type ObservationStore interface {
	Exists(ctx context.Context, s slot.Slot) (bool, error)
	// Put stores the feature set for s. A second Put for the same slot
	// fails with fault.ErrDuplicateSlot.
	Put(ctx context.Context, s slot.Slot, processedAt time.Time, fs contour.FeatureSet) error
	// LatestStored returns the newest stored slot; ok is false when empty.
	LatestStored(ctx context.Context) (s slot.Slot, ok bool, err error)

	// Range returns observations with start <= slot <= end, oldest first.
	Range(ctx context.Context, start, end time.Time) ([]model.Observation, error)
	// Latest returns the newest observation; ok is false when empty.
	Latest(ctx context.Context) (obs model.Observation, ok bool, err error)
}

// RegionStore holds one region report per (observed date, region).
type RegionStore interface {
	// UpsertAll replaces or inserts every record by its key.
	UpsertAll(ctx context.Context, records []model.Region) error
	// RangeByDate returns reports observed between the dates of start and end
	// inclusive, ordered by observed date.
	RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error)
	// ByRegion returns every report of one region ordered by observed date.
	ByRegion(ctx context.Context, region int) ([]model.Region, error)
}

// Stats summarizes store contents.
type Stats struct {
	Driver       string `json:"driver"`
	Observations int64  `json:"observations"`
	Regions      int64  `json:"regions"`
}

// Store is implemented by every driver.
type Store interface {
	ObservationStore
	RegionStore

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Config selects and parameterizes a driver.
type Config struct {
	Driver string
	DSN    string
	// Database is the ClickHouse database name.
	Database string
}

// Open connects the configured driver and ensures its schema exists.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		return OpenSQLite(ctx, cfg.DSN)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case DriverClickHouse:
		return OpenClickHouse(ctx, cfg.DSN, cfg.Database)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
