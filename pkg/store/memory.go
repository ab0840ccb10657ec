package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store implementation.
// Useful for testing and development. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]string),
	}
}

// Get returns the value stored under key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Update applies fn to the current value of key while holding the write lock.
func (m *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.values[key]
	v, keep, err := fn(old, ok)
	if err != nil {
		return err
	}
	if keep {
		m.values[key] = v
	} else {
		delete(m.values, key)
	}
	return nil
}

// Snapshot returns a copy of all stored values.
func (m *MemoryStore) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Clear removes all stored data.
func (m *MemoryStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values = make(map[string]string)
}

// Verify MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
