package store

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s, err := NewRedisStore(RedisStoreConfig{Client: client, Prefix: "test:"})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return s, mr
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get(missing) = %v, %v", ok, err)
	}

	if err := s.Set(ctx, KeyRelayToken, "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := mr.Get("test:" + KeyRelayToken); got != "tok" {
		t.Errorf("raw redis value = %q, want tok", got)
	}

	v, ok, err := s.Get(ctx, KeyRelayToken)
	if err != nil || !ok || v != "tok" {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}

	s.Delete(ctx, KeyRelayToken)
	if _, ok, _ := s.Get(ctx, KeyRelayToken); ok {
		t.Error("Get() after Delete ok = true")
	}
}

func TestRedisStore_TypedHelpers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	SetPendingToken(ctx, s, "tok-1")
	cleared, err := ClearPendingToken(ctx, s, "tok-1")
	if err != nil || !cleared {
		t.Errorf("ClearPendingToken() = %v, %v", cleared, err)
	}

	SetFirstTimeDone(ctx, s, "cam1", true)
	if done, _ := FirstTimeDone(ctx, s, "cam1"); !done {
		t.Error("FirstTimeDone() = false")
	}
}

func TestRedisStore_ConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, n := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			if err := AddPairedCamera(ctx, s, n); err != nil {
				t.Errorf("AddPairedCamera(%s) error = %v", n, err)
			}
		}(n)
	}
	wg.Wait()

	got, _ := PairedCameras(ctx, s)
	if len(got) != len(names) {
		t.Errorf("PairedCameras() = %v, want %d entries", got, len(names))
	}
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	if _, err := NewRedisStore(RedisStoreConfig{}); err == nil {
		t.Error("NewRedisStore() without client should fail")
	}
}
