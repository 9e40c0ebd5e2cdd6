// Package slot models the 15-minute observation slot and the scheduler that
// walks slots from a stored cursor toward the latest published one.
package slot

import (
	"time"
)

// Period is the quantization step of observation identity.
const Period = 15 * time.Minute

// Slot is an instant floored to Period, always in UTC.
type Slot struct {
	t time.Time
}

// Floor quantizes t down to its slot.
func Floor(t time.Time) Slot {
	return Slot{t: t.UTC().Truncate(Period)}
}

// FromUnix returns the slot containing the given unix second.
func FromUnix(sec int64) Slot {
	return Floor(time.Unix(sec, 0))
}

// Parse reads an RFC3339 timestamp and floors it.
func Parse(s string) (Slot, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Slot{}, err
	}
	return Floor(t), nil
}

// Time returns the slot instant.
func (s Slot) Time() time.Time { return s.t }

// Unix returns the slot instant as unix seconds.
func (s Slot) Unix() int64 { return s.t.Unix() }

// IsZero reports whether s is the zero slot.
func (s Slot) IsZero() bool { return s.t.IsZero() }

// Next returns the following slot.
func (s Slot) Next() Slot { return Slot{t: s.t.Add(Period)} }

// Add moves s by n periods.
func (s Slot) Add(n int) Slot { return Slot{t: s.t.Add(time.Duration(n) * Period)} }

// Before reports whether s is strictly earlier than o.
func (s Slot) Before(o Slot) bool { return s.t.Before(o.t) }

// After reports whether s is strictly later than o.
func (s Slot) After(o Slot) bool { return s.t.After(o.t) }

// Equal reports whether both slots denote the same instant.
func (s Slot) Equal(o Slot) bool { return s.t.Equal(o.t) }

// Sub returns the duration s - o.
func (s Slot) Sub(o Slot) time.Duration { return s.t.Sub(o.t) }

// String formats the slot as RFC3339.
func (s Slot) String() string { return s.t.Format(time.RFC3339) }

// MarshalText implements encoding.TextMarshaler.
func (s Slot) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Slot) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// Max returns the later of a and b.
func Max(a, b Slot) Slot {
	if a.After(b) {
		return a
	}
	return b
}
