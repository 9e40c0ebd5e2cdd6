package export

import "errors"

// Sentinel errors.
var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrInvalidRange  = errors.New("invalid export range")
	ErrWrite         = errors.New("export write failed")
)
