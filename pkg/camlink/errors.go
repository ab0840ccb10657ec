package camlink

import "errors"

// Package-level errors.
var (
	// ErrStoreRequired is returned when Config.Store is nil.
	ErrStoreRequired = errors.New("camlink: store is required")

	// ErrChannelRequired is returned when Config.Channel is nil.
	ErrChannelRequired = errors.New("camlink: channel is required")

	// ErrClosed is returned when an operation is attempted on a closed App.
	ErrClosed = errors.New("camlink: app closed")

	// ErrInvalidConfig is returned when install configuration is incomplete.
	ErrInvalidConfig = errors.New("camlink: invalid configuration")
)
