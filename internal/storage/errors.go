package storage

import "errors"

// Storage errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTerminalStatus is returned when a write targets a movement whose
	// status is already CONFIRMED or FAILED. Terminal movements are immutable.
	ErrTerminalStatus = errors.New("movement status is terminal")
)
