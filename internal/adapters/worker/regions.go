package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/metrics"
	"github.com/okian/helio/pkg/retry"
)

// RegionSource returns the current region report.
type RegionSource interface {
	FetchAll(ctx context.Context) ([]model.Region, error)
}

// RegionStore persists region reports keyed by observed date and region.
type RegionStore interface {
	UpsertAll(ctx context.Context, records []model.Region) error
}

// RegionStats is a point-in-time view of the region job.
type RegionStats struct {
	Runs    int64  `json:"runs"`
	Records int64  `json:"records"`
	Retries int64  `json:"retries"`
	LastRun string `json:"last_run,omitempty"`
}

// Regions copies the region report into storage on a fixed interval.
type Regions struct {
	lifecycle

	source   RegionSource
	store    RegionStore
	interval time.Duration
	retry    *retry.Fixed

	runs    atomic.Int64
	records atomic.Int64
	retries atomic.Int64
	lastRun atomic.Int64
}

// NewRegions wires the region job.
func NewRegions(source RegionSource, store RegionStore, opts ...RegionOption) *Regions {
	w := &Regions{
		lifecycle: newLifecycle(),
		source:    source,
		store:     store,
		interval:  DefaultRegionInterval,
		retry:     retry.NewFixed(DefaultRegionRetryDelay),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("regions")
	}
	return w
}

// Run executes one pass immediately and then one per interval.
func (w *Regions) Run(ctx context.Context) {
	defer w.finish()
	ctx, cancel := w.begin(ctx)
	defer cancel()

	w.logger.Info(ctx, "region job started", logger.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Info(ctx, "region job stopped")
			return
		}
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "region job stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches and stores the report, retrying each step until it
// succeeds. It returns an error only when ctx ends.
func (w *Regions) RunOnce(ctx context.Context) error {
	var records []model.Region
	for {
		var err error
		records, err = w.source.FetchAll(ctx)
		if err == nil {
			w.retry.Reset()
			break
		}
		metrics.RecordFetchError("swpc_regions", fault.Label(err))
		if err := w.backoff(ctx, "fetch", err); err != nil {
			metrics.RecordRegionRun("canceled", 0)
			return err
		}
	}

	for {
		err := w.store.UpsertAll(ctx, records)
		if err == nil {
			w.retry.Reset()
			break
		}
		if err := w.backoff(ctx, "upsert", err); err != nil {
			metrics.RecordRegionRun("canceled", 0)
			return err
		}
	}

	w.runs.Add(1)
	w.records.Add(int64(len(records)))
	w.lastRun.Store(time.Now().Unix())
	metrics.RecordRegionRun("ok", len(records))
	w.logger.Info(ctx, "region report stored", logger.Int("records", len(records)))
	return nil
}

func (w *Regions) backoff(ctx context.Context, op string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	w.retries.Add(1)
	metrics.RecordRetry("regions")
	metrics.RecordErrorByComponent("regions", fault.Label(cause))
	w.logger.Warn(ctx, "retrying",
		logger.String("op", op),
		logger.Int("attempt", w.retry.Attempts+1),
		logger.Duration("delay", w.retry.Delay),
		logger.Error(cause),
	)
	return w.retry.Wait(ctx)
}

// Stats returns counters safe to read from other goroutines.
func (w *Regions) Stats() RegionStats {
	st := RegionStats{
		Runs:    w.runs.Load(),
		Records: w.records.Load(),
		Retries: w.retries.Load(),
	}
	if u := w.lastRun.Load(); u != 0 {
		st.LastRun = time.Unix(u, 0).UTC().Format(time.RFC3339)
	}
	return st
}
