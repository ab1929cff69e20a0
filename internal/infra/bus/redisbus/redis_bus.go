// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package redisbus implements the bus transport on top of Redis pub/sub.
//
// Redis has no per-message acknowledgement, so AtLeastOnce means the PUBLISH
// command round-tripped successfully and its error is returned to the caller.
// AtMostOnce publishes are logged and swallowed on failure.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	corebus "github.com/ManuGH/namewhisk/internal/bus"
	infrabus "github.com/ManuGH/namewhisk/internal/infra/bus"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

const transportName = "redis"

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	// DialTimeout bounds the initial PING.
	DialTimeout time.Duration
	// MaxRetries caps command retries so a broker outage surfaces as the
	// dial error instead of the caller's deadline. Zero means one retry.
	MaxRetries int
}

// Dialer opens Redis backed bus connections.
type Dialer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDialer returns a dialer for cfg.
func NewDialer(cfg Config) *Dialer {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	return &Dialer{cfg: cfg, logger: log.WithComponent("redisbus")}
}

// Dial connects and verifies the server with a PING.
func (d *Dialer) Dial(ctx context.Context, clientID string) (corebus.Conn, error) {
	c := newConn(nil, infrabus.NewEventSink(transportName, 16),
		d.logger.With().Str(log.FieldClientID, clientID).Logger())

	client := redis.NewClient(&redis.Options{
		Addr:            d.cfg.Addr,
		Username:        d.cfg.Username,
		Password:        d.cfg.Password,
		DB:              d.cfg.DB,
		ClientName:      clientID,
		DialTimeout:     d.cfg.DialTimeout,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      d.cfg.MaxRetries,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 250 * time.Millisecond,
	})
	c.attach(client)

	pingCtx, cancel := context.WithTimeout(ctx, d.cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		c.events.Close()
		return nil, fmt.Errorf("redis dial %s: %w", d.cfg.Addr, err)
	}

	d.logger.Debug().
		Str(log.FieldClientID, clientID).
		Str("addr", d.cfg.Addr).
		Msg("redis bus connected")
	return c, nil
}

// NewConnFromClient wraps an existing client. Close closes the client.
func NewConnFromClient(client *redis.Client) corebus.Conn {
	c := newConn(nil, infrabus.NewEventSink(transportName, 16), log.WithComponent("redisbus"))
	c.attach(client)
	return c
}

type conn struct {
	client *redis.Client
	events *infrabus.EventSink
	logger zerolog.Logger

	// offline is set by a failed dial and cleared by the next successful
	// one. Pool, retry and pub/sub reconnect dials all pass through
	// healthHook.
	offline atomic.Bool

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func newConn(client *redis.Client, events *infrabus.EventSink, logger zerolog.Logger) *conn {
	return &conn{
		client: client,
		events: events,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

func (c *conn) attach(client *redis.Client) {
	client.AddHook(healthHook{conn: c})
	c.client = client
}

func (c *conn) Subscribe(ctx context.Context, topic string) (corebus.Subscription, error) {
	if topic == "" {
		return nil, corebus.ErrInvalidTopic
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, corebus.ErrClosed
	}
	c.mu.Unlock()

	ps := c.client.Subscribe(ctx, topic)
	// Receive blocks until the server confirmed the subscription.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		c.reportError(err)
		return nil, fmt.Errorf("redis subscribe %q: %w", topic, err)
	}

	s := &subscription{
		conn:  c,
		topic: topic,
		ps:    ps,
		ch:    make(chan corebus.Message, 64),
		done:  make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = ps.Close()
		return nil, corebus.ErrClosed
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	s.wg.Add(1)
	go s.pump()
	return s, nil
}

func (c *conn) Publish(ctx context.Context, topic string, payload []byte, qos corebus.QoS) error {
	if topic == "" {
		return corebus.ErrInvalidTopic
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		metrics.IncPublishFailure(transportName, corebus.TopicKind(topic), qos.String())
		return corebus.ErrClosed
	}

	err := c.client.Publish(ctx, topic, payload).Err()
	if err == nil {
		return nil
	}
	metrics.IncPublishFailure(transportName, corebus.TopicKind(topic), qos.String())
	// A done caller context means the caller gave up; anything else,
	// including a client side timeout, is a transport problem.
	if ctx.Err() == nil || !isContextErr(err) {
		c.reportError(err)
	}
	if qos == corebus.AtMostOnce {
		c.logger.Warn().Err(err).Str(log.FieldTopic, topic).Msg("best-effort publish failed")
		return nil
	}
	return fmt.Errorf("redis publish %q: %w", topic, err)
}

func (c *conn) reportError(err error) {
	c.logger.Warn().Err(err).Str(log.FieldEvent, "transport.error").Msg("redis command failed")
	c.events.Emit(corebus.Event{Kind: corebus.EventError, Err: err})
}

func (c *conn) markOffline(err error) {
	if c.offline.CompareAndSwap(false, true) {
		c.logger.Warn().Err(err).Str(log.FieldEvent, "transport.offline").Msg("redis unreachable")
		c.events.Emit(corebus.Event{Kind: corebus.EventOffline, Err: err})
	}
}

func (c *conn) markOnline() {
	if c.offline.CompareAndSwap(true, false) {
		c.logger.Info().Str(log.FieldEvent, "transport.online").Msg("redis reachable again")
		c.events.Emit(corebus.Event{Kind: corebus.EventOnline})
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// healthHook turns dial outcomes into offline and online events.
type healthHook struct {
	conn *conn
}

func (h healthHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		cn, err := next(ctx, network, addr)
		if err != nil {
			h.conn.markOffline(err)
			return nil, err
		}
		h.conn.markOnline()
		return cn, nil
	}
}

func (h healthHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h healthHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (c *conn) Events() <-chan corebus.Event {
	return c.events.C()
}

func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return corebus.ErrClosed
	}
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for s := range c.subs {
		subs = append(subs, s)
	}
	c.subs = map[*subscription]struct{}{}
	c.mu.Unlock()

	for _, s := range subs {
		s.shutdown()
	}
	err := c.client.Close()
	c.events.Close()
	return err
}

func (c *conn) forget(s *subscription) {
	c.mu.Lock()
	delete(c.subs, s)
	c.mu.Unlock()
}

type subscription struct {
	conn  *conn
	topic string
	ps    *redis.PubSub
	ch    chan corebus.Message
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) C() <-chan corebus.Message { return s.ch }

func (s *subscription) Close() error {
	if !s.shutdown() {
		return corebus.ErrClosed
	}
	s.conn.forget(s)
	return nil
}

func (s *subscription) shutdown() bool {
	first := false
	s.once.Do(func() {
		first = true
		close(s.done)
		_ = s.ps.Close()
		s.wg.Wait()
		close(s.ch)
	})
	return first
}

func (s *subscription) pump() {
	defer s.wg.Done()
	in := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- corebus.Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
			case <-s.done:
				return
			}
		}
	}
}

var _ corebus.Dialer = (*Dialer)(nil)
