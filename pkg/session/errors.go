package session

import "errors"

// Session package errors.
var (
	// ErrMissingConfig is returned when the server address, relay token or
	// user credentials are absent or invalid. No channel call is made.
	ErrMissingConfig = errors.New("session: missing configuration")

	// ErrChannelInit is returned when secure channel initialization fails.
	ErrChannelInit = errors.New("session: channel initialization failed")

	// ErrInvalidCamera is returned for an empty camera name.
	ErrInvalidCamera = errors.New("session: invalid camera name")

	// ErrAction is returned when the operation bundled with a connect fails.
	ErrAction = errors.New("session: operation failed")

	// ErrStoreRequired is returned when ManagerConfig.Store is nil.
	ErrStoreRequired = errors.New("session: store is required")

	// ErrChannelRequired is returned when ManagerConfig.Channel is nil.
	ErrChannelRequired = errors.New("session: channel is required")
)
