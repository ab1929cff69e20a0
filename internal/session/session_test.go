// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/namewhisk/internal/bus"
)

const testChannel = "chan-1"

// harness plays the remote client of a session over the memory bus.
type harness struct {
	t      *testing.T
	bus    *bus.MemoryBus
	client bus.Conn
	topics Topics

	connected bus.Subscription
	response  bus.Subscription
	end       bus.Subscription

	coord *Coordinator
	errCh chan error
}

func newHarness(t *testing.T, handler RequestHandler, budget Budget, opts ...Option) *harness {
	t.Helper()
	b := bus.NewMemoryBus()
	return newHarnessWithDialer(t, b, b, handler, budget, opts...)
}

func newHarnessWithDialer(t *testing.T, b *bus.MemoryBus, dialer bus.Dialer, handler RequestHandler, budget Budget, opts ...Option) *harness {
	t.Helper()
	ctx := context.Background()
	client, err := b.Dial(ctx, "client")
	require.NoError(t, err)

	h := &harness{
		t:      t,
		bus:    b,
		client: client,
		topics: NewTopics(testChannel),
		errCh:  make(chan error, 1),
	}
	h.connected, err = client.Subscribe(ctx, h.topics.Connected)
	require.NoError(t, err)
	h.response, err = client.Subscribe(ctx, h.topics.Response)
	require.NoError(t, err)
	h.end, err = client.Subscribe(ctx, h.topics.End)
	require.NoError(t, err)

	h.coord, err = NewCoordinator(Invocation{ChannelID: testChannel}, budget, dialer, handler, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return h
}

// start runs the coordinator and waits for the CONNECTED announcement.
func (h *harness) start(ctx context.Context) {
	h.t.Helper()
	go func() { h.errCh <- h.coord.Run(ctx) }()
	msg := h.next(h.connected, 2*time.Second)
	require.JSONEq(h.t, `{}`, string(msg.Payload))
}

func (h *harness) request(payload string) {
	h.t.Helper()
	require.NoError(h.t, h.client.Publish(context.Background(), h.topics.Request, []byte(payload), bus.AtLeastOnce))
}

func (h *harness) next(sub bus.Subscription, timeout time.Duration) bus.Message {
	h.t.Helper()
	select {
	case msg, ok := <-sub.C():
		require.True(h.t, ok, "subscription %s closed", sub.Topic())
		return msg
	case <-time.After(timeout):
		h.t.Fatalf("no message on %s within %s", sub.Topic(), timeout)
		return bus.Message{}
	}
}

func (h *harness) quiet(sub bus.Subscription, d time.Duration) {
	h.t.Helper()
	select {
	case msg, ok := <-sub.C():
		if ok {
			h.t.Fatalf("unexpected message on %s: %s", sub.Topic(), msg.Payload)
		}
	case <-time.After(d):
	}
}

// endNotice returns the next END notice published by the session, skipping
// the client's own END messages.
func (h *harness) endNotice(timeout time.Duration) EndNotice {
	h.t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		msg := h.next(h.end, time.Until(deadline))
		var n EndNotice
		require.NoError(h.t, json.Unmarshal(msg.Payload, &n))
		if n.Chrome {
			return n
		}
	}
}

func (h *harness) wait() error {
	h.t.Helper()
	select {
	case err := <-h.errCh:
		return err
	case <-time.After(5 * time.Second):
		h.t.Fatal("session did not finish")
		return nil
	}
}

// recordingHandler echoes the request payload as response.
type recordingHandler struct {
	mu       sync.Mutex
	handled  []string
	inFlight int
	peak     int
	delay    time.Duration
	hook     func(ctx context.Context, payload string)
}

func (r *recordingHandler) Handle(ctx context.Context, pub Publisher, topic string, payload []byte) bool {
	r.mu.Lock()
	r.inFlight++
	r.peak = max(r.peak, r.inFlight)
	r.handled = append(r.handled, string(payload))
	r.mu.Unlock()

	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.hook != nil {
		r.hook(ctx, string(payload))
	}
	err := pub.Publish(ctx, topic, payload, bus.AtLeastOnce)

	r.mu.Lock()
	r.inFlight--
	r.mu.Unlock()
	return err == nil
}

func (r *recordingHandler) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handled...), r.peak
}

// opLog records transport operations in order.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	l.ops = append(l.ops, op)
	l.mu.Unlock()
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

func (l *opLog) count(op string) int {
	n := 0
	for _, o := range l.list() {
		if o == op {
			n++
		}
	}
	return n
}

type recordingDialer struct {
	inner         bus.Dialer
	log           *opLog
	failSubscribe string
}

func (d *recordingDialer) Dial(ctx context.Context, clientID string) (bus.Conn, error) {
	if !strings.HasPrefix(clientID, ClientIDPrefix) {
		return nil, errors.New("unexpected client id " + clientID)
	}
	c, err := d.inner.Dial(ctx, clientID)
	if err != nil {
		return nil, err
	}
	d.log.add("dial")
	return &recordingConn{Conn: c, d: d}, nil
}

type recordingConn struct {
	bus.Conn
	d *recordingDialer
}

func (c *recordingConn) Subscribe(ctx context.Context, topic string) (bus.Subscription, error) {
	if c.d.failSubscribe != "" && bus.TopicKind(topic) == c.d.failSubscribe {
		return nil, errors.New("subscribe refused")
	}
	c.d.log.add("subscribe " + bus.TopicKind(topic))
	return c.Conn.Subscribe(ctx, topic)
}

func (c *recordingConn) Publish(ctx context.Context, topic string, payload []byte, qos bus.QoS) error {
	c.d.log.add("publish " + bus.TopicKind(topic) + " " + qos.String())
	return c.Conn.Publish(ctx, topic, payload, qos)
}

func (c *recordingConn) Close() error {
	c.d.log.add("close")
	return c.Conn.Close()
}
