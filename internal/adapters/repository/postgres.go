package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"
)

var postgresSchema = []string{`
CREATE TABLE IF NOT EXISTS sdo_hmi_observations (
	id                BIGSERIAL PRIMARY KEY,
	observation_time  TIMESTAMPTZ NOT NULL UNIQUE,
	processed_time    TIMESTAMPTZ NOT NULL,
	umbra_contours    JSONB NOT NULL,
	penumbra_contours JSONB NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS swpc_solar_regions (
	id            BIGSERIAL,
	observed_date DATE NOT NULL,
	region        INTEGER NOT NULL,
	first_date    TIMESTAMPTZ NOT NULL,
	latitude      INTEGER NOT NULL,
	longitude     INTEGER NOT NULL,
	metadata      JSONB NOT NULL,
	PRIMARY KEY (observed_date, region)
)`,
	`CREATE INDEX IF NOT EXISTS swpc_solar_regions_region ON swpc_solar_regions (region, observed_date)`,
}

// PostgresStore persists through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: %w", ErrMissingDSN)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: schema: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Exists(ctx context.Context, sl slot.Slot) (bool, error) {
	defer observe("exists")()
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sdo_hmi_observations WHERE observation_time = $1)`,
		sl.Time()).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Put(ctx context.Context, sl slot.Slot, processedAt time.Time, fs contour.FeatureSet) error {
	defer observe("put")()
	umbra, err := encodeContours(fs.Umbra)
	if err != nil {
		return err
	}
	penumbra, err := encodeContours(fs.Penumbra)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO sdo_hmi_observations (observation_time, processed_time, umbra_contours, penumbra_contours)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (observation_time) DO NOTHING`,
		sl.Time(), processedAt.UTC(), string(umbra), string(penumbra))
	if err != nil {
		return fmt.Errorf("postgres: put: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NewKind("postgres.put "+sl.String(), fault.ErrDuplicateSlot)
	}
	return nil
}

func (s *PostgresStore) LatestStored(ctx context.Context) (slot.Slot, bool, error) {
	var latest *time.Time
	if err := s.pool.QueryRow(ctx,
		`SELECT MAX(observation_time) FROM sdo_hmi_observations`).Scan(&latest); err != nil {
		return slot.Slot{}, false, fmt.Errorf("postgres: latest stored: %w", err)
	}
	if latest == nil {
		return slot.Slot{}, false, nil
	}
	return slot.Floor(*latest), true, nil
}

const postgresObservationColumns = `id, observation_time, processed_time, umbra_contours, penumbra_contours`

func (s *PostgresStore) Range(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	defer observe("range")()
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresObservationColumns+` FROM sdo_hmi_observations
		 WHERE observation_time BETWEEN $1 AND $2 ORDER BY observation_time`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: range: %w", err)
	}
	defer rows.Close()

	out := make([]model.Observation, 0)
	for rows.Next() {
		obs, err := scanPostgresObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: range: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Latest(ctx context.Context) (model.Observation, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresObservationColumns+` FROM sdo_hmi_observations ORDER BY observation_time DESC LIMIT 1`)
	obs, err := scanPostgresObservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Observation{}, false, nil
	}
	if err != nil {
		return model.Observation{}, false, err
	}
	return obs, true, nil
}

func scanPostgresObservation(row pgx.Row) (model.Observation, error) {
	var (
		obs                 model.Observation
		observed, processed time.Time
		umbra, penumbra     []byte
	)
	if err := row.Scan(&obs.ID, &observed, &processed, &umbra, &penumbra); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return obs, err
		}
		return obs, fmt.Errorf("postgres: scan observation: %w", err)
	}
	obs.Slot = slot.Floor(observed)
	obs.ProcessedAt = processed.UTC()
	var err error
	if obs.Features.Umbra, err = decodeContours(umbra); err != nil {
		return obs, err
	}
	if obs.Features.Penumbra, err = decodeContours(penumbra); err != nil {
		return obs, err
	}
	return obs, nil
}

const postgresUpsertRegion = `
INSERT INTO swpc_solar_regions (observed_date, region, first_date, latitude, longitude, metadata)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (observed_date, region) DO UPDATE SET
	first_date = EXCLUDED.first_date,
	latitude   = EXCLUDED.latitude,
	longitude  = EXCLUDED.longitude,
	metadata   = EXCLUDED.metadata`

// postgresRegionArgs binds r to postgresUpsertRegion.
func postgresRegionArgs(r model.Region) ([]any, error) {
	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	return []any{model.Date(r.ObservedDate), r.Region, r.FirstDate.UTC(), r.Latitude, r.Longitude, string(meta)}, nil
}

func (s *PostgresStore) UpsertAll(ctx context.Context, records []model.Region) error {
	defer observe("upsert_regions")()
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		args, err := postgresRegionArgs(r)
		if err != nil {
			return err
		}
		batch.Queue(postgresUpsertRegion, args...)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("postgres: upsert regions: %w", err)
		}
		return nil
	})
}

const postgresRegionColumns = `id, region, observed_date, first_date, latitude, longitude, metadata`

func (s *PostgresStore) RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error) {
	lo, hi := dateBounds(start, end)
	return s.queryRegions(ctx,
		`SELECT `+postgresRegionColumns+` FROM swpc_solar_regions
		 WHERE observed_date BETWEEN $1 AND $2 ORDER BY observed_date, region`, lo, hi)
}

func (s *PostgresStore) ByRegion(ctx context.Context, region int) ([]model.Region, error) {
	return s.queryRegions(ctx,
		`SELECT `+postgresRegionColumns+` FROM swpc_solar_regions
		 WHERE region = $1 ORDER BY observed_date`, region)
}

func (s *PostgresStore) queryRegions(ctx context.Context, query string, args ...any) ([]model.Region, error) {
	defer observe("query_regions")()
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query regions: %w", err)
	}
	defer rows.Close()

	out := make([]model.Region, 0)
	for rows.Next() {
		var (
			r    model.Region
			meta []byte
		)
		if err := rows.Scan(&r.ID, &r.Region, &r.ObservedDate, &r.FirstDate, &r.Latitude, &r.Longitude, &meta); err != nil {
			return nil, fmt.Errorf("postgres: scan region: %w", err)
		}
		r.ObservedDate = model.Date(r.ObservedDate)
		r.FirstDate = r.FirstDate.UTC()
		if r.Metadata, err = decodeMetadata(meta); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query regions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: DriverPostgres}
	if err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM sdo_hmi_observations),
		(SELECT COUNT(*) FROM swpc_solar_regions)`).Scan(&st.Observations, &st.Regions); err != nil {
		return st, fmt.Errorf("postgres: stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
