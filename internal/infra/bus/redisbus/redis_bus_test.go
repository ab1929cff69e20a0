// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package redisbus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corebus "github.com/ManuGH/namewhisk/internal/bus"
)

func dial(t *testing.T, mr *miniredis.Miniredis, id string) corebus.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := NewDialer(Config{Addr: mr.Addr()}).Dial(ctx, id)
	require.NoError(t, err)
	return c
}

func TestRedisBusPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	sub := dial(t, mr, "sub")
	pub := dial(t, mr, "pub")
	defer func() { _ = pub.Close() }()

	ctx := context.Background()
	s, err := sub.Subscribe(ctx, "namewhisk/c1/request")
	require.NoError(t, err)
	assert.Equal(t, "namewhisk/c1/request", s.Topic())

	require.NoError(t, pub.Publish(ctx, "namewhisk/c1/request", []byte(`{"name":"x"}`), corebus.AtLeastOnce))

	select {
	case m := <-s.C():
		assert.Equal(t, "namewhisk/c1/request", m.Topic)
		assert.JSONEq(t, `{"name":"x"}`, string(m.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), corebus.ErrClosed)
	_, ok := <-s.C()
	assert.False(t, ok)

	require.NoError(t, sub.Close())
}

func TestRedisBusCloseClosesSubscriptions(t *testing.T) {
	mr := miniredis.RunT(t)
	c := dial(t, mr, "c")

	s, err := c.Subscribe(context.Background(), "namewhisk/c1/end")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, ok := <-s.C()
	assert.False(t, ok)
	_, ok = <-c.Events()
	assert.False(t, ok)

	assert.ErrorIs(t, c.Close(), corebus.ErrClosed)
	assert.ErrorIs(t, c.Publish(context.Background(), "namewhisk/c1/end", nil, corebus.AtLeastOnce), corebus.ErrClosed)
	_, err = c.Subscribe(context.Background(), "namewhisk/c1/end")
	assert.ErrorIs(t, err, corebus.ErrClosed)
}

// waitEvent drains events until one of kind arrives.
func waitEvent(t *testing.T, c corebus.Conn, kind corebus.EventKind) corebus.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "events closed before %s", kind)
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestRedisBusPublishFailureByQoS(t *testing.T) {
	mr := miniredis.RunT(t)
	c := dial(t, mr, "c")
	defer func() { _ = c.Close() }()

	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	assert.NoError(t, c.Publish(ctx, "namewhisk/c1/connected", []byte("{}"), corebus.AtMostOnce))

	err := c.Publish(ctx, "namewhisk/c1/response", []byte("{}"), corebus.AtLeastOnce)
	require.Error(t, err)
	assert.NoError(t, ctx.Err(), "publish must fail before the caller deadline")
	assert.NotErrorIs(t, err, context.DeadlineExceeded)

	ev := waitEvent(t, c, corebus.EventOffline)
	assert.Error(t, ev.Err)
	waitEvent(t, c, corebus.EventError)
}

func TestRedisBusReportsRecovery(t *testing.T) {
	mr := miniredis.RunT(t)
	c := dial(t, mr, "c")
	defer func() { _ = c.Close() }()

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Error(t, c.Publish(ctx, "namewhisk/c1/response", []byte("{}"), corebus.AtLeastOnce))
	waitEvent(t, c, corebus.EventOffline)

	require.NoError(t, mr.Restart())
	require.Eventually(t, func() bool {
		return c.Publish(ctx, "namewhisk/c1/response", []byte("{}"), corebus.AtLeastOnce) == nil
	}, 8*time.Second, 100*time.Millisecond)
	waitEvent(t, c, corebus.EventOnline)
}

func TestRedisBusCallerCancelIsNotReported(t *testing.T) {
	mr := miniredis.RunT(t)
	c := dial(t, mr, "c")
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.Publish(ctx, "namewhisk/c1/response", []byte("{}"), corebus.AtLeastOnce))

	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected %s event", ev.Kind)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisBusDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewDialer(Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}).Dial(ctx, "x")
	require.Error(t, err)
}

func TestRedisBusRejectsEmptyTopic(t *testing.T) {
	mr := miniredis.RunT(t)
	c := dial(t, mr, "c")
	defer func() { _ = c.Close() }()

	_, err := c.Subscribe(context.Background(), "")
	assert.ErrorIs(t, err, corebus.ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish(context.Background(), "", nil, corebus.AtMostOnce), corebus.ErrInvalidTopic)
}
