package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/dedupe"
	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/slot"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/metrics"
	"github.com/okian/helio/pkg/retry"
)

// LatestSource answers the most recent published slot. Errors are only
// returned on cancellation.
type LatestSource interface {
	Get(ctx context.Context) (slot.Slot, error)
}

// invalidator is implemented by latest sources that cache their answer.
type invalidator interface {
	Invalidate()
}

// ImageSource downloads the image of one slot.
type ImageSource interface {
	FetchImage(ctx context.Context, s slot.Slot, scale contour.Scale) (*contour.RawImage, error)
}

// FeatureExtractor turns an image into umbra and penumbra contours.
type FeatureExtractor interface {
	Features(img *contour.RawImage) contour.FeatureSet
}

// ObservationStore is the storage the imagery loop writes to.
type ObservationStore interface {
	Exists(ctx context.Context, s slot.Slot) (bool, error)
	Put(ctx context.Context, s slot.Slot, processedAt time.Time, fs contour.FeatureSet) error
	LatestStored(ctx context.Context) (slot.Slot, bool, error)
}

// ImageryStats is a point-in-time view of the imagery loop.
type ImageryStats struct {
	Cursor     string `json:"cursor,omitempty"`
	Latest     string `json:"latest,omitempty"`
	Stored     int64  `json:"stored"`
	Skipped    int64  `json:"skipped"`
	NotFound   int64  `json:"not_found"`
	Duplicates int64  `json:"duplicates"`
	Retries    int64  `json:"retries"`
}

// Imagery walks slots from the stored high-water mark towards the latest
// published slot, storing one observation per slot.
type Imagery struct {
	lifecycle

	latest    LatestSource
	images    ImageSource
	extractor FeatureExtractor
	store     ObservationStore
	memo      dedupe.Memo

	scale    contour.Scale
	lookback time.Duration
	idle     time.Duration
	edge     time.Duration
	retry    *retry.Fixed
	now      func() time.Time

	sched *slot.Scheduler

	cursorUnix atomic.Int64
	latestUnix atomic.Int64
	stored     atomic.Int64
	skipped    atomic.Int64
	notFound   atomic.Int64
	duplicates atomic.Int64
	retries    atomic.Int64
}

// NewImagery wires the imagery loop.
func NewImagery(latest LatestSource, images ImageSource, extractor FeatureExtractor, store ObservationStore, opts ...ImageryOption) *Imagery {
	w := &Imagery{
		lifecycle: newLifecycle(),
		latest:    latest,
		images:    images,
		extractor: extractor,
		store:     store,
		scale:     contour.Big,
		lookback:  slot.DefaultLookback,
		idle:      DefaultIdleInterval,
		edge:      DefaultEdgePause,
		retry:     retry.NewFixed(DefaultImageRetryDelay),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("imagery")
	}
	if w.memo == nil {
		w.memo = dedupe.NewMemo()
	}
	return w
}

// Run resumes from storage and processes slots until stopped.
func (w *Imagery) Run(ctx context.Context) {
	defer w.finish()
	ctx, cancel := w.begin(ctx)
	defer cancel()

	if err := w.Init(ctx); err != nil {
		return
	}
	w.logger.Info(ctx, "imagery loop started",
		logger.String("cursor", w.sched.Cursor().String()),
		logger.String("scale", w.scale.Label()),
	)
	for {
		if err := w.Step(ctx); err != nil {
			w.logger.Info(ctx, "imagery loop stopped", logger.String("cursor", w.sched.Cursor().String()))
			return
		}
	}
}

// Init positions the scheduler after the newest stored slot, bounded by
// the lookback window. Storage failures are retried.
func (w *Imagery) Init(ctx context.Context) error {
	for {
		last, ok, err := w.store.LatestStored(ctx)
		if err == nil {
			if !ok {
				last = slot.Slot{}
			}
			w.sched = slot.NewScheduler(last, w.now(), w.lookback)
			w.cursorUnix.Store(w.sched.Cursor().Unix())
			w.retry.Reset()
			return nil
		}
		if err := w.backoff(ctx, "latest_stored", err); err != nil {
			return err
		}
	}
}

// Step runs one scheduling iteration. It returns an error only when ctx ends.
func (w *Imagery) Step(ctx context.Context) error {
	if w.sched == nil {
		if err := w.Init(ctx); err != nil {
			return err
		}
	}

	latest, err := w.latest.Get(ctx)
	if err != nil {
		return err
	}
	s := w.sched.Advance(latest)
	w.cursorUnix.Store(s.Unix())
	w.latestUnix.Store(latest.Unix())
	metrics.UpdateCursor(float64(s.Unix()), latest.Sub(s).Seconds())

	stored, err := w.isStored(ctx, s)
	if err != nil {
		return err
	}
	if stored {
		w.skipped.Add(1)
		metrics.RecordSlotSkipped()
		if !s.Before(latest) {
			w.logger.Debug(ctx, "caught up, idling", logger.String("slot", s.String()), logger.Duration("idle", w.idle))
			return w.retry.Pause(ctx, w.idle)
		}
		return nil
	}

	img, err := w.fetch(ctx, s)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			w.notFound.Add(1)
			metrics.RecordSlotNotFound()
			w.logger.Info(ctx, "no image for slot", logger.String("slot", s.String()))
			if s.Before(latest) {
				return nil
			}
			// The published latest slot has no image yet; ask again after the pause.
			if inv, ok := w.latest.(invalidator); ok {
				inv.Invalidate()
			}
			w.logger.Debug(ctx, "image not published yet", logger.String("slot", s.String()), logger.Duration("pause", w.edge))
			return w.retry.Pause(ctx, w.edge)
		}
		return err
	}

	start := time.Now()
	fs := w.extractor.Features(img)
	metrics.RecordExtractionLatency(float64(time.Since(start).Microseconds()) / 1000)

	return w.put(ctx, s, fs)
}

// isStored consults the memo before storage. Storage errors are retried.
func (w *Imagery) isStored(ctx context.Context, s slot.Slot) (bool, error) {
	if w.memo.Seen(s) {
		return true, nil
	}
	for {
		ok, err := w.store.Exists(ctx, s)
		if err == nil {
			w.retry.Reset()
			if ok {
				w.memo.Record(s)
			}
			return ok, nil
		}
		if err := w.backoff(ctx, "exists", err); err != nil {
			return false, err
		}
	}
}

// fetch retries transient failures of the same slot. NotFound and
// cancellation are returned.
func (w *Imagery) fetch(ctx context.Context, s slot.Slot) (*contour.RawImage, error) {
	for {
		img, err := w.images.FetchImage(ctx, s, w.scale)
		if err == nil {
			w.retry.Reset()
			return img, nil
		}
		if fault.KindOf(err) == fault.ErrNotFound {
			w.retry.Reset()
			return nil, err
		}
		metrics.RecordFetchError("jsoc_image", fault.Label(err))
		if err := w.backoff(ctx, "fetch_image", err, logger.String("slot", s.String())); err != nil {
			return nil, err
		}
	}
}

// put stores fs once. A duplicate is reported and not retried.
func (w *Imagery) put(ctx context.Context, s slot.Slot, fs contour.FeatureSet) error {
	for {
		err := w.store.Put(ctx, s, w.now().UTC(), fs)
		switch {
		case err == nil:
			w.retry.Reset()
			w.memo.Record(s)
			w.stored.Add(1)
			metrics.RecordObservationStored(len(fs.Umbra), len(fs.Penumbra))
			w.logger.Info(ctx, "stored observation",
				logger.String("slot", s.String()),
				logger.Int("umbra", len(fs.Umbra)),
				logger.Int("penumbra", len(fs.Penumbra)),
			)
			return nil
		case fault.KindOf(err) == fault.ErrDuplicateSlot:
			w.retry.Reset()
			w.memo.Record(s)
			w.duplicates.Add(1)
			metrics.RecordDuplicateSlot()
			metrics.RecordErrorByComponent("imagery", "duplicate_slot")
			w.logger.Error(ctx, "observation already stored for slot", logger.String("slot", s.String()), logger.Error(err))
			return nil
		}
		if err := w.backoff(ctx, "put", err, logger.String("slot", s.String())); err != nil {
			return err
		}
	}
}

// backoff logs a failure and waits the fixed delay. It returns an error
// only when ctx ends, either before or during the wait.
func (w *Imagery) backoff(ctx context.Context, op string, cause error, fields ...logger.Field) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	w.retries.Add(1)
	metrics.RecordRetry("imagery")
	metrics.RecordErrorByComponent("imagery", fault.Label(cause))
	fields = append(fields,
		logger.String("op", op),
		logger.Int("attempt", w.retry.Attempts+1),
		logger.Duration("delay", w.retry.Delay),
		logger.Error(cause),
	)
	w.logger.Warn(ctx, "retrying", fields...)
	return w.retry.Wait(ctx)
}

// Cursor returns the slot most recently scheduled.
func (w *Imagery) Cursor() slot.Slot {
	if u := w.cursorUnix.Load(); u != 0 {
		return slot.FromUnix(u)
	}
	return slot.Slot{}
}

// Stats returns counters safe to read from other goroutines.
func (w *Imagery) Stats() ImageryStats {
	st := ImageryStats{
		Stored:     w.stored.Load(),
		Skipped:    w.skipped.Load(),
		NotFound:   w.notFound.Load(),
		Duplicates: w.duplicates.Load(),
		Retries:    w.retries.Load(),
	}
	if u := w.cursorUnix.Load(); u != 0 {
		st.Cursor = slot.FromUnix(u).String()
	}
	if u := w.latestUnix.Load(); u != 0 {
		st.Latest = slot.FromUnix(u).String()
	}
	return st
}
