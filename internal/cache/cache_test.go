// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set(ctx, "avail:foo.com", []byte("true"), time.Minute)

	val, ok := c.Get(ctx, "avail:foo.com")
	if !ok {
		t.Fatal("expected value to be found")
	}
	if string(val) != "true" {
		t.Errorf("expected 'true', got %q", val)
	}

	stats := c.Stats()
	if stats.Sets != 1 || stats.Hits != 1 || stats.CurrentSize != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestMemoryCache_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	in := []byte("abc")
	c.Set(ctx, "k", in, time.Minute)
	in[0] = 'X'

	out, _ := c.Get(ctx, "k")
	if string(out) != "abc" {
		t.Fatalf("cache must not alias caller buffers, got %q", out)
	}
	out[1] = 'Y'
	again, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("cache must not alias returned buffers, got %q", again)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newMemoryCache(0, clock.Now)
	defer c.Close()

	c.Set(ctx, "k", []byte("v"), time.Second)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}

	if n := c.deleteExpired(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if stats := c.Stats(); stats.Evictions != 1 || stats.CurrentSize != 0 {
		t.Errorf("unexpected stats after eviction: %+v", stats)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("expected deleted key to miss")
	}
}

func TestMemoryCache_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	c := NewMemoryCache(5 * time.Millisecond)
	c.Set(context.Background(), "k", []byte("v"), time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()
	c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Fatal("noop cache must never hit")
	}
	if c.Stats() != (Stats{}) {
		t.Fatal("noop cache must report zero stats")
	}
}
