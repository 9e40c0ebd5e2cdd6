package worker

import (
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/dedupe"
	"github.com/okian/helio/pkg/logger"
	"github.com/okian/helio/pkg/retry"
)

// Defaults for the imagery loop and the region job.
const (
	DefaultIdleInterval     = time.Minute
	DefaultEdgePause        = 10 * time.Second
	DefaultImageRetryDelay  = time.Second
	DefaultRegionInterval   = 5 * time.Minute
	DefaultRegionRetryDelay = time.Second
)

// ImageryOption configures an Imagery loop.
type ImageryOption func(*Imagery)

// WithImageryLogger sets the logger.
func WithImageryLogger(l logger.Logger) ImageryOption {
	return func(w *Imagery) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithScale selects the image scale to fetch.
func WithScale(s contour.Scale) ImageryOption {
	return func(w *Imagery) {
		if s.Valid() {
			w.scale = s
		}
	}
}

// WithLookback bounds how far back the loop starts on an empty store.
func WithLookback(d time.Duration) ImageryOption {
	return func(w *Imagery) {
		if d > 0 {
			w.lookback = d
		}
	}
}

// WithIdleInterval sets the pause once the loop has caught up with the remote.
func WithIdleInterval(d time.Duration) ImageryOption {
	return func(w *Imagery) {
		if d > 0 {
			w.idle = d
		}
	}
}

// WithEdgePause sets the pause after the latest published slot has no
// image yet. It should match the latest-slot cache TTL.
func WithEdgePause(d time.Duration) ImageryOption {
	return func(w *Imagery) {
		if d > 0 {
			w.edge = d
		}
	}
}

// WithImageryRetry sets the retry policy for fetch and storage failures.
func WithImageryRetry(r *retry.Fixed) ImageryOption {
	return func(w *Imagery) {
		if r != nil {
			w.retry = r
		}
	}
}

// WithMemo sets the memo of slots known to be stored.
func WithMemo(m dedupe.Memo) ImageryOption {
	return func(w *Imagery) {
		if m != nil {
			w.memo = m
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ImageryOption {
	return func(w *Imagery) {
		if now != nil {
			w.now = now
		}
	}
}

// RegionOption configures a Regions job.
type RegionOption func(*Regions)

// WithRegionLogger sets the logger.
func WithRegionLogger(l logger.Logger) RegionOption {
	return func(w *Regions) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRegionInterval sets the time between runs.
func WithRegionInterval(d time.Duration) RegionOption {
	return func(w *Regions) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRegionRetry sets the retry policy for fetch and upsert failures.
func WithRegionRetry(r *retry.Fixed) RegionOption {
	return func(w *Regions) {
		if r != nil {
			w.retry = r
		}
	}
}
