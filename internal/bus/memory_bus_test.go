// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/namewhisk/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func dial(t *testing.T, b *MemoryBus, id string) Conn {
	t.Helper()
	c, err := b.Dial(context.Background(), id)
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, sub Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestMemoryBusDeliversAcrossConnections(t *testing.T) {
	b := NewMemoryBus()
	server := dial(t, b, "server")
	client := dial(t, b, "client")
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	sub, err := server.Subscribe(context.Background(), "namewhisk/abc/request")
	require.NoError(t, err)

	require.NoError(t, client.Publish(context.Background(), "namewhisk/abc/request", []byte(`{"name":"foo"}`), AtLeastOnce))

	msg := receive(t, sub)
	assert.Equal(t, "namewhisk/abc/request", msg.Topic)
	assert.JSONEq(t, `{"name":"foo"}`, string(msg.Payload))
}

func TestMemoryBusPreservesPublishOrder(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	sub, err := c.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, c.Publish(context.Background(), "t", []byte{byte(i)}, AtLeastOnce))
	}
	for i := 0; i < 10; i++ {
		assert.Equal(t, []byte{byte(i)}, receive(t, sub).Payload)
	}
}

func TestMemoryBusPayloadIsCopied(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	sub, err := c.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	payload := []byte("abc")
	require.NoError(t, c.Publish(context.Background(), "t", payload, AtLeastOnce))
	payload[0] = 'X'

	assert.Equal(t, "abc", string(receive(t, sub).Payload))
}

func TestMemoryBusAtLeastOnceTimeoutIncrementsDropMetrics(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	sub, err := c.Subscribe(context.Background(), "namewhisk/x/response")
	require.NoError(t, err)

	// Fill subscriber channel to capacity so next publish blocks.
	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, c.Publish(context.Background(), "namewhisk/x/response", []byte("msg"), AtLeastOnce))
	}

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("response", "timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.Publish(ctx, "namewhisk/x/response", []byte("blocked"), AtLeastOnce)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	final := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("response", "timeout"))
	require.Greater(t, final, initial, "expected reasoned bus drop counter to increase")
}

func TestMemoryBusAtMostOnceDropsWhenFull(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	sub, err := c.Subscribe(context.Background(), "namewhisk/x/connected")
	require.NoError(t, err)

	for i := 0; i < cap(sub.C()); i++ {
		require.NoError(t, c.Publish(context.Background(), "namewhisk/x/connected", []byte("m"), AtMostOnce))
	}

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("connected", "full"))
	require.NoError(t, c.Publish(context.Background(), "namewhisk/x/connected", []byte("overflow"), AtMostOnce),
		"best-effort publish must not report a drop as an error")
	require.Equal(t, initial+1, getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("connected", "full")))
}

func TestMemoryBusPublishRejectsNilContext(t *testing.T) {
	b := NewMemoryBus()
	//lint:ignore SA1012 nil context is the case under test
	err := b.Publish(nil, "topic", []byte("msg"), AtLeastOnce)
	require.Error(t, err)
	require.Contains(t, err.Error(), "context is nil")
}

func TestMemoryBusRejectsEmptyTopic(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	_, err := c.Subscribe(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidTopic)
	require.ErrorIs(t, c.Publish(context.Background(), "", nil, AtMostOnce), ErrInvalidTopic)
}

func TestMemoryBusUnsubscribeClosesChannel(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	sub, err := c.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers("t"))

	require.NoError(t, sub.Close())
	require.ErrorIs(t, sub.Close(), ErrClosed)
	require.Equal(t, 0, b.Subscribers("t"))

	_, ok := <-sub.C()
	require.False(t, ok)

	// Publishing to a topic with no subscribers is not an error.
	require.NoError(t, c.Publish(context.Background(), "t", []byte("x"), AtLeastOnce))
}

func TestMemoryBusCloseConnection(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")

	sub, err := c.Subscribe(context.Background(), "t")
	require.NoError(t, err)
	require.Equal(t, 1, b.Connections())

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Close(), ErrClosed)
	require.Equal(t, 0, b.Connections())
	require.Equal(t, 0, b.Subscribers("t"))

	_, ok := <-sub.C()
	require.False(t, ok, "subscription channel must be closed with its connection")
	_, ok = <-c.Events()
	require.False(t, ok, "events channel must be closed with its connection")

	require.ErrorIs(t, c.Publish(context.Background(), "t", nil, AtLeastOnce), ErrClosed)
	_, err = c.Subscribe(context.Background(), "t")
	require.ErrorIs(t, err, ErrClosed)
}

func TestMemoryBusEmitEvent(t *testing.T) {
	b := NewMemoryBus()
	c := dial(t, b, "c")
	t.Cleanup(func() { _ = c.Close() })

	b.EmitEvent(Event{Kind: EventOffline})
	b.EmitEvent(Event{Kind: EventError, Err: errors.New("socket reset")})

	ev := <-c.Events()
	assert.Equal(t, EventOffline, ev.Kind)
	ev = <-c.Events()
	assert.Equal(t, EventError, ev.Kind)
	assert.EqualError(t, ev.Err, "socket reset")
}

func TestMemoryBusConcurrentPublishAndClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewMemoryBus()
	pub := dial(t, b, "pub")
	sub := dial(t, b, "sub")
	defer pub.Close()

	s, err := sub.Subscribe(context.Background(), "t")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			for j := 0; j < 200; j++ {
				_ = pub.Publish(ctx, "t", []byte("x"), AtLeastOnce)
			}
		}()
	}

	// Drain a little, then close while publishers are active.
	for i := 0; i < 10; i++ {
		<-s.C()
	}
	require.NoError(t, sub.Close())
	wg.Wait()
}

func TestTopicKind(t *testing.T) {
	assert.Equal(t, "request", TopicKind("namewhisk/abc/request"))
	assert.Equal(t, "plain", TopicKind("plain"))
	assert.Equal(t, "", TopicKind("trailing/"))
}

func TestQoSString(t *testing.T) {
	assert.Equal(t, "at_most_once", AtMostOnce.String())
	assert.Equal(t, "at_least_once", AtLeastOnce.String())
	assert.Equal(t, "unknown", QoS(7).String())
}
