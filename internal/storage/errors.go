package storage

import "errors"

// Storage errors shared by all cache backends.
var (
	// ErrInvalidInput is returned when a key or value fails validation,
	// e.g. an empty hash or a negative height.
	ErrInvalidInput = errors.New("invalid input")
)
