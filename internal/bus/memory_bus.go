// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

const (
	memoryTransport = "memory"
	dropLogEvery    = 100
	subBuffer       = 64
	eventBuffer     = 16
)

var dropCount atomic.Uint64

// MemoryBus is an in-process broker used for tests, local runs and the
// "memory" transport kind. It is not durable. AtLeastOnce publishes block
// until every subscriber buffer accepted the message or ctx is done;
// AtMostOnce publishes drop on full buffers.
type MemoryBus struct {
	mu    sync.RWMutex
	subs  map[string][]*memSub
	conns map[*memConn]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:  make(map[string][]*memSub),
		conns: make(map[*memConn]struct{}),
	}
}

// Dial opens a new client connection to the in-process broker.
func (b *MemoryBus) Dial(ctx context.Context, clientID string) (Conn, error) {
	if ctx == nil {
		return nil, fmt.Errorf("dial context is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &memConn{
		b:        b,
		clientID: clientID,
		events:   make(chan Event, eventBuffer),
		subs:     make(map[*memSub]struct{}),
	}
	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	return c, nil
}

// Publish delivers payload to every subscriber of topic, regardless of which
// connection they belong to.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte, qos QoS) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	if topic == "" {
		return ErrInvalidTopic
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	for _, s := range subs {
		if err := s.deliver(ctx, msg, qos); err != nil {
			if errors.Is(err, ErrClosed) {
				// Unsubscribed concurrently; nothing to deliver to.
				continue
			}
			reason := publishDropReason(err)
			metrics.IncBusDropReason(TopicKind(topic), reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 1 {
				log.L().Warn().
					Str(log.FieldTopic, topic).
					Str(log.FieldReason, reason).
					Uint64("dropped", count).
					Msg("memory bus dropped message")
			}
			if qos == AtLeastOnce {
				return fmt.Errorf("publish topic %q: %w", topic, err)
			}
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Connections returns the number of open connections.
func (b *MemoryBus) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.conns)
}

// EmitEvent broadcasts a connection event to every open connection.
// Events are dropped for connections whose event buffer is full.
func (b *MemoryBus) EmitEvent(ev Event) {
	b.mu.RLock()
	conns := make([]*memConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.RUnlock()
	for _, c := range conns {
		c.emit(ev)
	}
}

var errSubscriberFull = errors.New("subscriber buffer full")

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, errSubscriberFull):
		return "full"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) addSub(s *memSub) {
	b.mu.Lock()
	b.subs[s.topic] = append(b.subs[s.topic], s)
	b.mu.Unlock()
}

func (b *MemoryBus) removeSub(s *memSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(b.subs, s.topic)
	} else {
		b.subs[s.topic] = out
	}
}

type memConn struct {
	b        *MemoryBus
	clientID string
	events   chan Event

	mu     sync.Mutex
	subs   map[*memSub]struct{}
	closed bool
}

func (c *memConn) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if topic == "" {
		return nil, ErrInvalidTopic
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s := &memSub{
		conn:  c,
		topic: topic,
		ch:    make(chan Message, subBuffer),
		done:  make(chan struct{}),
	}
	c.subs[s] = struct{}{}
	c.b.addSub(s)
	return s, nil
}

func (c *memConn) Publish(ctx context.Context, topic string, payload []byte, qos QoS) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		metrics.IncPublishFailure(memoryTransport, TopicKind(topic), qos.String())
		return ErrClosed
	}
	if err := c.b.Publish(ctx, topic, payload, qos); err != nil {
		metrics.IncPublishFailure(memoryTransport, TopicKind(topic), qos.String())
		return err
	}
	return nil
}

func (c *memConn) Events() <-chan Event {
	return c.events
}

func (c *memConn) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *memConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	subs := make([]*memSub, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = map[*memSub]struct{}{}
	close(c.events)
	c.mu.Unlock()

	for _, s := range subs {
		s.shutdown()
	}

	c.b.mu.Lock()
	delete(c.b.conns, c)
	c.b.mu.Unlock()
	return nil
}

func (c *memConn) forget(s *memSub) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type memSub struct {
	conn  *memConn
	topic string
	ch    chan Message
	done  chan struct{}

	// mu is held for reading by in-flight deliveries so that shutdown can
	// close ch only after every sender has left.
	mu       sync.RWMutex
	stopOnce sync.Once
	closed   bool
}

func (s *memSub) Topic() string { return s.topic }

func (s *memSub) C() <-chan Message { return s.ch }

func (s *memSub) deliver(ctx context.Context, msg Message, qos QoS) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if qos == AtMostOnce {
		select {
		case s.ch <- msg:
			return nil
		case <-s.done:
			return ErrClosed
		default:
			return errSubscriberFull
		}
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes from the broker.
func (s *memSub) Close() error {
	if !s.shutdown() {
		return ErrClosed
	}
	s.conn.forget(s)
	return nil
}

func (s *memSub) shutdown() bool {
	first := false
	s.stopOnce.Do(func() {
		first = true
		s.conn.b.removeSub(s)
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return first
}

var _ Dialer = (*MemoryBus)(nil)
