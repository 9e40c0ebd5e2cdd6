// Package worker runs the background ingestion loops: imagery and region reports.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/helio/pkg/logger"
)

// Worker is a long-running loop.
type Worker interface {
	// Run blocks until ctx is cancelled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the loop and waits for Run to return.
	Shutdown(ctx context.Context) error
}

// lifecycle is the shutdown plumbing shared by the loops.
type lifecycle struct {
	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once
	logger   logger.Logger
}

func newLifecycle() lifecycle {
	return lifecycle{
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// begin returns a context cancelled by either ctx or Shutdown.
func (l *lifecycle) begin(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-l.shutdown:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (l *lifecycle) finish() {
	close(l.done)
}

// Shutdown signals the loop and waits for it to exit or ctx to end.
func (l *lifecycle) Shutdown(ctx context.Context) error {
	l.once.Do(func() { close(l.shutdown) })

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
