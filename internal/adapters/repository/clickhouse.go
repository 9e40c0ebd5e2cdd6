package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"
)

const (
	// DefaultClickHouseAddr is the native protocol endpoint used without a DSN.
	DefaultClickHouseAddr = "127.0.0.1:9000"
	// DefaultClickHouseDatabase is used when no database is configured.
	DefaultClickHouseDatabase = "helio"
)

// ClickHouseStore writes to ReplacingMergeTree tables over the native protocol.
//
// Tables carry no auto-increment ids: observation ids are slot indexes and
// region ids are derived from the key. Reads use FINAL so replaced rows are
// collapsed. The client holds a single connection, guarded by mu.
type ClickHouseStore struct {
	mu     sync.Mutex
	conn   *ch.Client
	db     string
	obsFQN string
	regFQN string
}

// OpenClickHouse dials addr and creates the database and tables.
func OpenClickHouse(ctx context.Context, addr, database string) (*ClickHouseStore, error) {
	if addr == "" {
		addr = DefaultClickHouseAddr
	}
	if database == "" {
		database = DefaultClickHouseDatabase
	}
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     addr,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: dial: %w", err)
	}
	s := &ClickHouseStore{
		conn:   conn,
		db:     database,
		obsFQN: database + ".sdo_hmi_observations",
		regFQN: database + ".swpc_solar_regions",
	}

	for _, ddl := range clickhouseSchema(database, s.obsFQN, s.regFQN) {
		if err := conn.Do(ctx, ch.Query{Body: ddl}); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("clickhouse: schema: %w", err)
		}
	}
	return s, nil
}

func clickhouseSchema(database, observations, regions string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                UInt64,
			observation_time  DateTime('UTC'),
			processed_time    DateTime('UTC'),
			umbra_contours    String,
			penumbra_contours String
		) ENGINE = ReplacingMergeTree ORDER BY observation_time`, observations),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            UInt64,
			observed_date Date,
			region        Int32,
			first_date    DateTime('UTC'),
			latitude      Int32,
			longitude     Int32,
			metadata      String,
			version       UInt64
		) ENGINE = ReplacingMergeTree(version) ORDER BY (observed_date, region)`, regions),
	}
}

func (s *ClickHouseStore) count(ctx context.Context, query string) (uint64, error) {
	var col proto.ColUInt64
	if err := s.conn.Do(ctx, ch.Query{
		Body:   query,
		Result: proto.Results{{Name: "count()", Data: &col}},
	}); err != nil {
		return 0, err
	}
	if col.Rows() == 0 {
		return 0, nil
	}
	return col.Row(0), nil
}

func (s *ClickHouseStore) Exists(ctx context.Context, sl slot.Slot) (bool, error) {
	defer observe("exists")()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists(ctx, sl)
}

func (s *ClickHouseStore) exists(ctx context.Context, sl slot.Slot) (bool, error) {
	n, err := s.count(ctx, fmt.Sprintf(
		"SELECT count() FROM %s FINAL WHERE observation_time = toDateTime(%d, 'UTC')", s.obsFQN, sl.Unix()))
	if err != nil {
		return false, fmt.Errorf("clickhouse: exists: %w", err)
	}
	return n > 0, nil
}

// Put checks and inserts under one lock, which is sufficient for the single
// writer this service runs.
func (s *ClickHouseStore) Put(ctx context.Context, sl slot.Slot, processedAt time.Time, fs contour.FeatureSet) error {
	defer observe("put")()
	umbra, err := encodeContours(fs.Umbra)
	if err != nil {
		return err
	}
	penumbra, err := encodeContours(fs.Penumbra)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.exists(ctx, sl)
	if err != nil {
		return err
	}
	if exists {
		return fault.NewKind("clickhouse.put "+sl.String(), fault.ErrDuplicateSlot)
	}

	var (
		id                  proto.ColUInt64
		observed, processed proto.ColDateTime
		umbraCol, penCol    proto.ColStr
	)
	id.Append(observationID(sl))
	observed.Append(sl.Time())
	processed.Append(processedAt.UTC())
	umbraCol.Append(string(umbra))
	penCol.Append(string(penumbra))

	if err := s.conn.Do(ctx, ch.Query{
		Body: fmt.Sprintf("INSERT INTO %s (id, observation_time, processed_time, umbra_contours, penumbra_contours) VALUES", s.obsFQN),
		Input: proto.Input{
			{Name: "id", Data: &id},
			{Name: "observation_time", Data: &observed},
			{Name: "processed_time", Data: &processed},
			{Name: "umbra_contours", Data: &umbraCol},
			{Name: "penumbra_contours", Data: &penCol},
		},
	}); err != nil {
		return fmt.Errorf("clickhouse: put: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) LatestStored(ctx context.Context) (slot.Slot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.count(ctx, fmt.Sprintf("SELECT count() FROM %s", s.obsFQN))
	if err != nil {
		return slot.Slot{}, false, fmt.Errorf("clickhouse: latest stored: %w", err)
	}
	if n == 0 {
		return slot.Slot{}, false, nil
	}
	var col proto.ColDateTime
	if err := s.conn.Do(ctx, ch.Query{
		Body:   fmt.Sprintf("SELECT max(observation_time) AS latest FROM %s", s.obsFQN),
		Result: proto.Results{{Name: "latest", Data: &col}},
	}); err != nil {
		return slot.Slot{}, false, fmt.Errorf("clickhouse: latest stored: %w", err)
	}
	if col.Rows() == 0 {
		return slot.Slot{}, false, nil
	}
	return slot.Floor(col.Row(0)), true, nil
}

type observationColumns struct {
	id                  proto.ColUInt64
	observed, processed proto.ColDateTime
	umbra, penumbra     proto.ColStr
}

func (c *observationColumns) results() proto.Results {
	return proto.Results{
		{Name: "id", Data: &c.id},
		{Name: "observation_time", Data: &c.observed},
		{Name: "processed_time", Data: &c.processed},
		{Name: "umbra_contours", Data: &c.umbra},
		{Name: "penumbra_contours", Data: &c.penumbra},
	}
}

func (s *ClickHouseStore) queryObservations(ctx context.Context, where, suffix string) ([]model.Observation, error) {
	var cols observationColumns
	out := make([]model.Observation, 0)
	var decodeErr error

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.conn.Do(ctx, ch.Query{
		Body: fmt.Sprintf(
			"SELECT id, observation_time, processed_time, umbra_contours, penumbra_contours FROM %s FINAL %s %s",
			s.obsFQN, where, suffix),
		Result: cols.results(),
		OnResult: func(_ context.Context, _ proto.Block) error {
			for i := 0; i < cols.id.Rows(); i++ {
				obs := model.Observation{
					ID:          int64(cols.id.Row(i)),
					Slot:        slot.Floor(cols.observed.Row(i)),
					ProcessedAt: cols.processed.Row(i).UTC(),
				}
				if obs.Features.Umbra, decodeErr = decodeContours([]byte(cols.umbra.Row(i))); decodeErr != nil {
					return decodeErr
				}
				if obs.Features.Penumbra, decodeErr = decodeContours([]byte(cols.penumbra.Row(i))); decodeErr != nil {
					return decodeErr
				}
				out = append(out, obs)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query observations: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStore) Range(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	defer observe("range")()
	lo, hi := unixBounds(start, end)
	return s.queryObservations(ctx,
		fmt.Sprintf("WHERE observation_time BETWEEN toDateTime(%d, 'UTC') AND toDateTime(%d, 'UTC')", lo, hi),
		"ORDER BY observation_time")
}

func (s *ClickHouseStore) Latest(ctx context.Context) (model.Observation, bool, error) {
	out, err := s.queryObservations(ctx, "", "ORDER BY observation_time DESC LIMIT 1")
	if err != nil || len(out) == 0 {
		return model.Observation{}, false, err
	}
	return out[0], true, nil
}

// observationID is the slot index since the epoch.
func observationID(sl slot.Slot) uint64 {
	return uint64(sl.Unix() / int64(slot.Period/time.Second))
}

// regionID packs the observed date and region number as yyyymmdd*100000 + region.
func regionID(r model.Region) uint64 {
	y, m, d := r.ObservedDate.UTC().Date()
	return uint64(y*10000+int(m)*100+d)*100000 + uint64(r.Region)
}

func (s *ClickHouseStore) UpsertAll(ctx context.Context, records []model.Region) error {
	defer observe("upsert_regions")()
	if len(records) == 0 {
		return nil
	}

	var (
		id, version      proto.ColUInt64
		observed         proto.ColDate
		region, lat, lon proto.ColInt32
		first            proto.ColDateTime
		meta             proto.ColStr
	)
	v := uint64(time.Now().UnixNano())
	for _, r := range records {
		b, err := encodeMetadata(r.Metadata)
		if err != nil {
			return err
		}
		id.Append(regionID(r))
		observed.Append(model.Date(r.ObservedDate))
		region.Append(int32(r.Region))
		first.Append(r.FirstDate.UTC())
		lat.Append(int32(r.Latitude))
		lon.Append(int32(r.Longitude))
		meta.Append(string(b))
		version.Append(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.Do(ctx, ch.Query{
		Body: fmt.Sprintf(
			"INSERT INTO %s (id, observed_date, region, first_date, latitude, longitude, metadata, version) VALUES", s.regFQN),
		Input: proto.Input{
			{Name: "id", Data: &id},
			{Name: "observed_date", Data: &observed},
			{Name: "region", Data: &region},
			{Name: "first_date", Data: &first},
			{Name: "latitude", Data: &lat},
			{Name: "longitude", Data: &lon},
			{Name: "metadata", Data: &meta},
			{Name: "version", Data: &version},
		},
	}); err != nil {
		return fmt.Errorf("clickhouse: upsert regions: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) queryRegions(ctx context.Context, where string) ([]model.Region, error) {
	defer observe("query_regions")()
	var (
		id               proto.ColUInt64
		observed         proto.ColDate
		region, lat, lon proto.ColInt32
		first            proto.ColDateTime
		meta             proto.ColStr
	)
	out := make([]model.Region, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.conn.Do(ctx, ch.Query{
		Body: fmt.Sprintf(
			"SELECT id, region, observed_date, first_date, latitude, longitude, metadata FROM %s FINAL %s ORDER BY observed_date, region",
			s.regFQN, where),
		Result: proto.Results{
			{Name: "id", Data: &id},
			{Name: "region", Data: &region},
			{Name: "observed_date", Data: &observed},
			{Name: "first_date", Data: &first},
			{Name: "latitude", Data: &lat},
			{Name: "longitude", Data: &lon},
			{Name: "metadata", Data: &meta},
		},
		OnResult: func(_ context.Context, _ proto.Block) error {
			for i := 0; i < id.Rows(); i++ {
				m, err := decodeMetadata([]byte(meta.Row(i)))
				if err != nil {
					return err
				}
				out = append(out, model.Region{
					ID:           int64(id.Row(i)),
					Region:       int(region.Row(i)),
					ObservedDate: model.Date(observed.Row(i)),
					FirstDate:    first.Row(i).UTC(),
					Latitude:     int(lat.Row(i)),
					Longitude:    int(lon.Row(i)),
					Metadata:     m,
				})
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: query regions: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStore) RangeByDate(ctx context.Context, start, end time.Time) ([]model.Region, error) {
	return s.queryRegions(ctx, regionDateFilter(start, end))
}

func regionDateFilter(start, end time.Time) string {
	lo, hi := dateBounds(start, end)
	return fmt.Sprintf("WHERE observed_date BETWEEN toDate('%s') AND toDate('%s')",
		lo.Format(model.DateLayout), hi.Format(model.DateLayout))
}

func (s *ClickHouseStore) ByRegion(ctx context.Context, region int) ([]model.Region, error) {
	return s.queryRegions(ctx, fmt.Sprintf("WHERE region = %d", region))
}

func (s *ClickHouseStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: DriverClickHouse}
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, err := s.count(ctx, fmt.Sprintf("SELECT count() FROM %s FINAL", s.obsFQN))
	if err != nil {
		return st, fmt.Errorf("clickhouse: stats: %w", err)
	}
	reg, err := s.count(ctx, fmt.Sprintf("SELECT count() FROM %s FINAL", s.regFQN))
	if err != nil {
		return st, fmt.Errorf("clickhouse: stats: %w", err)
	}
	st.Observations, st.Regions = int64(obs), int64(reg)
	return st, nil
}

func (s *ClickHouseStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
