package dispatch

import "errors"

// Dispatch errors.
var (
	// ErrUnsupportedPolicy is returned for any policy other than KeepExisting.
	ErrUnsupportedPolicy = errors.New("dispatch: unsupported policy")

	// ErrClosed is returned when enqueueing on a closed dispatcher.
	ErrClosed = errors.New("dispatch: dispatcher closed")

	// ErrNilWork is returned when work is nil.
	ErrNilWork = errors.New("dispatch: work is nil")

	// ErrInvalidTaskID is returned for an empty task id.
	ErrInvalidTaskID = errors.New("dispatch: invalid task id")
)
