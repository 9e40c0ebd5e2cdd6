// Package availability answers "what is the most recent published slot"
// without hammering the remote on every loop iteration.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/okian/helio/internal/domain/fault"
	"github.com/okian/helio/internal/domain/slot"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/metrics"
	"github.com/okian/helio/pkg/retry"
)

const (
	// DefaultTTL bounds how long a fetched latest slot is reused.
	DefaultTTL = 10 * time.Second
	// DefaultRetryDelay is the pause between failed remote queries.
	DefaultRetryDelay = 10 * time.Second
)

// RemoteLatestSlot reports the most recent slot the remote has published.
// It returns an error of kind fault.ErrUnavailable when nothing is published yet.
type RemoteLatestSlot interface {
	FetchLatest(ctx context.Context) (slot.Slot, error)
}

// cached is the last successful answer and when it was fetched.
type cached struct {
	value     slot.Slot
	fetchedAt time.Time
}

// Oracle caches RemoteLatestSlot answers for a fixed TTL.
// It is owned by a single loop and is not safe for concurrent use.
type Oracle struct {
	remote RemoteLatestSlot
	ttl    time.Duration
	now    func() time.Time
	retry  *retry.Fixed
	log    logger.Logger

	cache *cached
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithTTL sets the cache lifetime.
func WithTTL(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRetry sets the retry policy used after failed fetches.
func WithRetry(r *retry.Fixed) Option {
	return func(o *Oracle) {
		if r != nil {
			o.retry = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.log = l
		}
	}
}

// New returns an Oracle over remote.
func New(remote RemoteLatestSlot, opts ...Option) *Oracle {
	o := &Oracle{
		remote: remote,
		ttl:    DefaultTTL,
		now:    time.Now,
		retry:  retry.NewFixed(DefaultRetryDelay),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Get().Named("oracle")
	}
	return o
}

// Get returns the latest published slot, from cache when fresh.
// Failures are retried forever; the only error is ctx's.
func (o *Oracle) Get(ctx context.Context) (slot.Slot, error) {
	if c := o.cache; c != nil && o.now().Sub(c.fetchedAt) < o.ttl {
		metrics.RecordOracleCacheHit()
		return c.value, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return slot.Slot{}, err
		}

		metrics.RecordOracleFetch()
		latest, err := o.remote.FetchLatest(ctx)
		if err == nil {
			o.retry.Reset()
			o.cache = &cached{value: latest, fetchedAt: o.now()}
			return latest, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return slot.Slot{}, ctx.Err()
		}

		label := fault.Label(err)
		metrics.RecordFetchError("jsoc_latest", label)
		metrics.RecordRetry("oracle")
		o.log.Warn(ctx, "latest slot unavailable, retrying",
			logger.String("kind", label),
			logger.Int("attempt", o.retry.Attempts+1),
			logger.Duration("delay", o.retry.Delay),
			logger.Error(err),
		)
		if werr := o.retry.Wait(ctx); werr != nil {
			return slot.Slot{}, werr
		}
	}
}

// Invalidate drops the cached value so the next Get queries the remote.
func (o *Oracle) Invalidate() {
	o.cache = nil
}
