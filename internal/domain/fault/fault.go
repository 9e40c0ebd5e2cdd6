// Package fault defines the error kinds that drive the ingestion retry policies.
package fault

import (
	"context"
	"errors"
)

// Kinds. Every error crossing a fetch or storage boundary is classified as one of these.
var (
	// ErrUnavailable means the remote has not published the requested data yet.
	ErrUnavailable = errors.New("unavailable")
	// ErrTransient covers network, timeout and parse failures.
	ErrTransient = errors.New("transient failure")
	// ErrNotFound means the slot is inside the published range but has no image.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSlot means storage already holds an observation for the slot.
	ErrDuplicateSlot = errors.New("duplicate slot")
)

// Error carries the failing operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewKind returns an error of the given kind without a cause.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap classifies err as kind. A nil err yields nil.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the kind of err. Errors that carry no kind are transient.
// Cancellation is reported as context.Canceled so loops can stop.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	for _, k := range []error{ErrDuplicateSlot, ErrNotFound, ErrUnavailable, ErrTransient} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrTransient
}

// Label returns a short metric label for the kind of err.
func Label(err error) string {
	switch KindOf(err) {
	case nil:
		return "none"
	case ErrUnavailable:
		return "unavailable"
	case ErrNotFound:
		return "not_found"
	case ErrDuplicateSlot:
		return "duplicate_slot"
	case context.Canceled:
		return "canceled"
	default:
		return "transient"
	}
}
