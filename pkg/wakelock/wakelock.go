// Package wakelock models the wake-preventing resource held by each
// triggering context for its own duration.
//
// Usage:
//
//	lock := locker.Acquire("camlink::push")
//	defer lock.Release()
package wakelock

import "sync"

// Lock is a held wake lock. Release is idempotent.
type Lock interface {
	Release()
}

// Locker acquires wake locks.
type Locker interface {
	Acquire(tag string) Lock
}

// Nop is a Locker for hosts without a wake-lock facility.
type Nop struct{}

type nopLock struct{}

func (nopLock) Release() {}

// Acquire implements Locker.
func (Nop) Acquire(string) Lock { return nopLock{} }

// Counting is a Locker that tracks held locks per tag.
// All methods are safe for concurrent use.
type Counting struct {
	mu       sync.Mutex
	held     map[string]int
	acquired int
}

// NewCounting creates a Counting locker.
func NewCounting() *Counting {
	return &Counting{held: make(map[string]int)}
}

type countingLock struct {
	c    *Counting
	tag  string
	once sync.Once
}

func (l *countingLock) Release() {
	l.once.Do(func() {
		l.c.mu.Lock()
		defer l.c.mu.Unlock()
		l.c.held[l.tag]--
		if l.c.held[l.tag] == 0 {
			delete(l.c.held, l.tag)
		}
	})
}

// Acquire implements Locker.
func (c *Counting) Acquire(tag string) Lock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held[tag]++
	c.acquired++
	return &countingLock{c: c, tag: tag}
}

// Held returns the number of locks currently held across all tags.
func (c *Counting) Held() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.held {
		n += v
	}
	return n
}

// Acquired returns the total number of Acquire calls.
func (c *Counting) Acquired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acquired
}

var (
	_ Locker = Nop{}
	_ Locker = (*Counting)(nil)
)
