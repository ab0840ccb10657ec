// Package store persists per-install and per-camera state: server address,
// relay token, user credentials, first-time flags and pending token state.
//
// The Store interface is plain string key/value persistence with one atomic
// read-modify-write primitive. Typed accessors for the values the session
// layer cares about live in typed.go.
package store

import "context"

// UpdateFunc computes a new value for a key from its current value.
// ok reports whether the key currently exists. Returning keep=false deletes
// the key. A non-nil error aborts the update and is returned unchanged.
type UpdateFunc func(old string, ok bool) (value string, keep bool, err error)

// Store abstracts key/value persistence for install and camera state.
// Implementations can use files, Redis or in-memory maps.
//
// All methods must be safe for concurrent use.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Update atomically replaces the value of key with the result of fn.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
