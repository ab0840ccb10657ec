package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrInvalidServiceType is returned for an empty or malformed service type.
	ErrInvalidServiceType = errors.New("discovery: invalid service type")

	// ErrInvalidInstanceName is returned for an empty camera instance name.
	ErrInvalidInstanceName = errors.New("discovery: invalid instance name")

	// ErrServiceNotFound is returned when a requested camera is not found.
	ErrServiceNotFound = errors.New("discovery: service not found")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("discovery: operation timed out")

	// ErrNoAddresses is returned when a discovered camera has no usable address.
	ErrNoAddresses = errors.New("discovery: no IP addresses")
)
