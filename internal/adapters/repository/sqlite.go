package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"

	_ "modernc.org/sqlite"
)

// DefaultSQLiteDSN is used when no DSN is configured.
const DefaultSQLiteDSN = "helio.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sdo_hmi_observations (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	observation_time  INTEGER NOT NULL UNIQUE,
	processed_time    INTEGER NOT NULL,
	umbra_contours    TEXT NOT NULL,
	penumbra_contours TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS swpc_solar_regions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	observed_date TEXT NOT NULL,
	region        INTEGER NOT NULL,
	first_date    TEXT NOT NULL,
	latitude      INTEGER NOT NULL,
	longitude     INTEGER NOT NULL,
	metadata      TEXT NOT NULL,
	UNIQUE (observed_date, region)
);
CREATE INDEX IF NOT EXISTS swpc_solar_regions_region ON swpc_solar_regions (region, observed_date);
`

// SQLiteStore persists to a SQLite file, or to memory with ":memory:".
// Observation times are unix seconds; processed times are unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn and creates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLiteDSN
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: mkdir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, sl slot.Slot) (bool, error) {
	defer observe("exists")()
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sdo_hmi_observations WHERE observation_time = ?`, sl.Unix()).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sqlite: exists: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, sl slot.Slot, processedAt time.Time, fs contour.FeatureSet) error {
	defer observe("put")()
	umbra, err := encodeContours(fs.Umbra)
	if err != nil {
		return err
	}
	penumbra, err := encodeContours(fs.Penumbra)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sdo_hmi_observations (observation_time, processed_time, umbra_contours, penumbra_contours)
		 VALUES (?, ?, ?, ?) ON CONFLICT (observation_time) DO NOTHING`,
		sl.Unix(), processedAt.UnixMilli(), string(umbra), string(penumbra))
	if err != nil {
		return fmt.Errorf("sqlite: put: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: put: %w", err)
	}
	if n == 0 {
		return fault.NewKind("sqlite.put "+sl.String(), fault.ErrDuplicateSlot)
	}
	return nil
}

func (s *SQLiteStore) LatestStored(ctx context.Context) (slot.Slot, bool, error) {
	var unix sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(observation_time) FROM sdo_hmi_observations`).Scan(&unix); err != nil {
		return slot.Slot{}, false, fmt.Errorf("sqlite: latest stored: %w", err)
	}
	if !unix.Valid {
		return slot.Slot{}, false, nil
	}
	return slot.FromUnix(unix.Int64), true, nil
}

const sqliteObservationColumns = `id, observation_time, processed_time, umbra_contours, penumbra_contours`

func (s *SQLiteStore) Range(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	defer observe("range")()
	lo, hi := unixBounds(start, end)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteObservationColumns+` FROM sdo_hmi_observations
		 WHERE observation_time BETWEEN ? AND ? ORDER BY observation_time`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("sqlite: range: %w", err)
	}
	defer rows.Close()

	out := make([]model.Observation, 0)
	for rows.Next() {
		obs, err := scanSQLiteObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: range: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Latest(ctx context.Context) (model.Observation, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteObservationColumns+` FROM sdo_hmi_observations ORDER BY observation_time DESC LIMIT 1`)
	obs, err := scanSQLiteObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Observation{}, false, nil
	}
	if err != nil {
		return model.Observation{}, false, err
	}
	return obs, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteObservation(row scanner) (model.Observation, error) {
	var (
		obs               model.Observation
		unix, processedMs int64
		umbra, penumbra   string
	)
	if err := row.Scan(&obs.ID, &unix, &processedMs, &umbra, &penumbra); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return obs, err
		}
		return obs, fmt.Errorf("sqlite: scan observation: %w", err)
	}
	obs.Slot = slot.FromUnix(unix)
	obs.ProcessedAt = time.UnixMilli(processedMs).UTC()
	var err error
	if obs.Features.Umbra, err = decodeContours([]byte(umbra)); err != nil {
		return obs, err
	}
	if obs.Features.Penumbra, err = decodeContours([]byte(penumbra)); err != nil {
		return obs, err
	}
	return obs, nil
}

func (s *SQLiteStore) UpsertAll(ctx context.Context, records []model.Region) error {
	defer observe("upsert_regions")()
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO swpc_solar_regions (observed_date, region, first_date, latitude, longitude, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (observed_date, region) DO UPDATE SET
			first_date = excluded.first_date,
			latitude   = excluded.latitude,
			longitude  = excluded.longitude,
			metadata   = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ObservedDate.UTC().Format(model.DateLayout),
			r.Region,
			r.FirstDate.UTC().Format(time.RFC3339),
			r.Latitude,
			r.Longitude,
			string(meta),
		); err != nil {
			return fmt.Errorf("sqlite: upsert region %d: %w", r.Region, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

const sqliteRegionColumns = `id, region, observed_date, first_date, latitude, longitude, metadata`

func (s *SQLiteStore) RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error) {
	lo, hi := dateBounds(start, end)
	return s.queryRegions(ctx,
		`SELECT `+sqliteRegionColumns+` FROM swpc_solar_regions
		 WHERE observed_date BETWEEN ? AND ? ORDER BY observed_date, region`,
		lo.Format(model.DateLayout), hi.Format(model.DateLayout))
}

func (s *SQLiteStore) ByRegion(ctx context.Context, region int) ([]model.Region, error) {
	return s.queryRegions(ctx,
		`SELECT `+sqliteRegionColumns+` FROM swpc_solar_regions
		 WHERE region = ? ORDER BY observed_date`, region)
}

func (s *SQLiteStore) queryRegions(ctx context.Context, query string, args ...any) ([]model.Region, error) {
	defer observe("query_regions")()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query regions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Region, 0)
	for rows.Next() {
		var (
			r               model.Region
			observed, first string
			meta            string
		)
		if err := rows.Scan(&r.ID, &r.Region, &observed, &first, &r.Latitude, &r.Longitude, &meta); err != nil {
			return nil, fmt.Errorf("sqlite: scan region: %w", err)
		}
		if r.ObservedDate, err = time.ParseInLocation(model.DateLayout, observed, time.UTC); err != nil {
			return nil, fmt.Errorf("sqlite: observed_date: %w", err)
		}
		if r.FirstDate, err = time.Parse(time.RFC3339, first); err != nil {
			return nil, fmt.Errorf("sqlite: first_date: %w", err)
		}
		r.FirstDate = r.FirstDate.UTC()
		if r.Metadata, err = decodeMetadata([]byte(meta)); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query regions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: DriverSQLite}
	if err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM sdo_hmi_observations),
		(SELECT COUNT(*) FROM swpc_solar_regions)`).Scan(&st.Observations, &st.Regions); err != nil {
		return st, fmt.Errorf("sqlite: stats: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
