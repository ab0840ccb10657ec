package wakelock

import "testing"

func TestCounting(t *testing.T) {
	c := NewCounting()

	a := c.Acquire("push")
	b := c.Acquire("token")
	if c.Held() != 2 {
		t.Errorf("Held() = %d, want 2", c.Held())
	}

	a.Release()
	a.Release()
	if c.Held() != 1 {
		t.Errorf("Held() after double release = %d, want 1", c.Held())
	}

	b.Release()
	if c.Held() != 0 {
		t.Errorf("Held() = %d, want 0", c.Held())
	}
	if c.Acquired() != 2 {
		t.Errorf("Acquired() = %d, want 2", c.Acquired())
	}
}

func TestNop(t *testing.T) {
	var l Locker = Nop{}
	l.Acquire("x").Release()
}
