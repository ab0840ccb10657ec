package store

import "errors"

// Package-level errors.
var (
	// ErrInvalidKey is returned when a key is empty.
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrInvalidValue is returned when a stored value cannot be decoded
	// into the requested type.
	ErrInvalidValue = errors.New("store: invalid value")

	// ErrConflict is returned when an atomic update keeps losing against
	// concurrent writers.
	ErrConflict = errors.New("store: update conflict")

	// ErrSealed is returned when a sealed document cannot be opened with
	// the configured secret.
	ErrSealed = errors.New("store: cannot open sealed document")

	// ErrSecretRequired is returned when a sealed store is opened without a secret.
	ErrSecretRequired = errors.New("store: secret is required")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("store: closed")
)
