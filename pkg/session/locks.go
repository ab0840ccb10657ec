package session

import "sync"

// LockTable serializes work per camera name.
//
// Each camera gets its own mutex, created on first use and kept for the
// lifetime of the table. Different cameras never contend.
type LockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the exclusive section for camera and returns the function
// that releases it.
func (t *LockTable) Lock(camera string) (unlock func()) {
	l := t.get(camera)
	l.Lock()
	return l.Unlock
}

// TryLock acquires the section for camera only if it is free.
func (t *LockTable) TryLock(camera string) (unlock func(), ok bool) {
	l := t.get(camera)
	if !l.TryLock() {
		return nil, false
	}
	return l.Unlock, true
}

func (t *LockTable) get(camera string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[camera]
	if !ok {
		l = &sync.Mutex{}
		t.locks[camera] = l
	}
	return l
}

// Count returns the number of cameras that have a lock.
func (t *LockTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
