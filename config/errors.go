package config

import "errors"

var (
	// ErrUnknownBackend is returned for a storage backend other than badger or postgres.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrStoragePathRequired is returned when the badger backend has no path.
	ErrStoragePathRequired = errors.New("storage path required for badger backend")

	// ErrStorageURLRequired is returned when the postgres backend has no URL.
	ErrStorageURLRequired = errors.New("storage url required for postgres backend")

	// ErrInvalidSearch wraps out of range search settings.
	ErrInvalidSearch = errors.New("invalid search config")
)
