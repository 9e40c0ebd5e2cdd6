package repository

import "errors"

// Sentinel errors for store configuration.
var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrMissingDSN    = errors.New("storage dsn is required")
	ErrClosed        = errors.New("store is closed")
)
