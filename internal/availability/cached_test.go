// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/namewhisk/internal/cache"
)

type countingChecker struct {
	calls int
	err   error
}

func (c *countingChecker) Check(_ context.Context, name, tld string) (Result, error) {
	c.calls++
	if c.err != nil {
		return Result{}, c.err
	}
	return Result{Name: name, TLD: tld, Available: name == "free"}, nil
}

func TestCachedCheckerMemory(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute)
	defer func() { _ = mem.Close() }()

	next := &countingChecker{}
	c := NewCachedChecker(next, mem, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r, err := c.Check(ctx, "free", "com")
		require.NoError(t, err)
		assert.True(t, r.Available)
	}
	r, err := c.Check(ctx, "taken", "com")
	require.NoError(t, err)
	assert.False(t, r.Available)

	assert.Equal(t, 2, next.calls)
	assert.Equal(t, int64(2), mem.Stats().Hits)
}

func TestCachedCheckerDoesNotCacheErrors(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute)
	defer func() { _ = mem.Close() }()

	next := &countingChecker{err: errors.New("down")}
	c := NewCachedChecker(next, mem, 0)

	_, err := c.Check(context.Background(), "free", "com")
	require.Error(t, err)
	_, err = c.Check(context.Background(), "free", "com")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedCheckerRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rc := cache.NewRedisCacheFromClient(client, "nw:", zerolog.Nop())
	defer func() { _ = rc.Close() }()

	next := &countingChecker{}
	c := NewCachedChecker(next, rc, time.Minute)
	ctx := context.Background()

	_, err := c.Check(ctx, "Free", "com")
	require.NoError(t, err)
	assert.True(t, mr.Exists("nw:avail:free.com"))

	_, err = c.Check(ctx, "Free", "com")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)

	mr.FastForward(2 * time.Minute)
	_, err = c.Check(ctx, "Free", "com")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}
