// Package retry implements the fixed-interval retry state shared by the ingestion loops.
//
// A Fixed value carries the delay and the number of attempts made since the
// last Reset, so callers can log and export the retry state instead of
// hiding it behind a helper that swallows errors.
package retry

import (
	"context"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fixed is a fixed-delay retry policy with explicit attempt state.
type Fixed struct {
	Delay    time.Duration
	Attempts int

	sleep SleepFunc
}

// NewFixed returns a policy that waits delay between attempts.
func NewFixed(delay time.Duration, opts ...Option) *Fixed {
	f := &Fixed{Delay: delay, sleep: Sleep}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Option configures a Fixed policy.
type Option func(*Fixed)

// WithSleep replaces the sleep implementation, typically with a fake clock in tests.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fixed) {
		if fn != nil {
			f.sleep = fn
		}
	}
}

// Wait records one more attempt and sleeps the fixed delay.
// It returns ctx.Err() if the context ends first.
func (f *Fixed) Wait(ctx context.Context) error {
	f.Attempts++
	return f.sleep(ctx, f.Delay)
}

// Pause sleeps for d without counting an attempt.
func (f *Fixed) Pause(ctx context.Context, d time.Duration) error {
	return f.sleep(ctx, d)
}

// Reset clears the attempt counter after a success.
func (f *Fixed) Reset() {
	f.Attempts = 0
}
