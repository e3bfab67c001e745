package batch

import "errors"

var (
	// ErrAnswererRequired is returned when no answerer is provided.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrInvalidPoolSize is returned for a pool size below one.
	ErrInvalidPoolSize = errors.New("pool size must be at least 1")
)
