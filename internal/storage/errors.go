package storage

import "errors"

// Store errors. Panel and result stores are append-only: a series, forecast,
// node or run id is written once and never updated.
var (
	// ErrNotFound is returned when a series or run has no stored record.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey is returned when a key is already stored. For result
	// stores this means the run id was persisted before and its results are reused.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrInvalidInput is returned for records missing their ids or run id.
	ErrInvalidInput = errors.New("storage: invalid input")
)
