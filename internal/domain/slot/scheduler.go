package slot

import (
	"time"
)

// DefaultLookback bounds how far back a fresh deployment starts ingesting.
const DefaultLookback = 7*24*time.Hour + Period

// Scheduler decides which slot to request next. It is not safe for
// concurrent use; the ingestion loop owns it.
type Scheduler struct {
	cursor Slot
}

// NewScheduler starts the cursor at max(lastStored, now-lookback), floored.
// A zero lastStored means storage is empty and only the lookback applies.
func NewScheduler(lastStored Slot, now time.Time, lookback time.Duration) *Scheduler {
	start := Floor(now.Add(-lookback))
	if !lastStored.IsZero() {
		start = Max(Floor(lastStored.Time()), start)
	}
	return &Scheduler{cursor: start}
}

// Cursor returns the current cursor.
func (s *Scheduler) Cursor() Slot { return s.cursor }

// Advance steps one period while the cursor trails latest by more than a
// period, and snaps to latest otherwise. The cursor never moves backwards:
// a latest earlier than the cursor leaves it unchanged.
func (s *Scheduler) Advance(latest Slot) Slot {
	switch {
	case latest.Before(s.cursor):
	case s.cursor.Next().Before(latest):
		s.cursor = s.cursor.Next()
	default:
		s.cursor = latest
	}
	return s.cursor
}
