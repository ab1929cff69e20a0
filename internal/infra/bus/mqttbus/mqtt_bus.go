// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mqttbus implements the bus transport against an MQTT 3.1.1 broker.
package mqttbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	corebus "github.com/ManuGH/namewhisk/internal/bus"
	infrabus "github.com/ManuGH/namewhisk/internal/infra/bus"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

const transportName = "mqtt"

// Config holds broker settings.
type Config struct {
	// BrokerURL, e.g. tcp://localhost:1883 or ssl://broker:8883.
	BrokerURL            string
	Username             string
	Password             string
	KeepAlive            time.Duration
	ConnectTimeout       time.Duration
	MaxReconnectInterval time.Duration
	// WriteTimeout bounds a single QoS1 publish when ctx has no deadline.
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Dialer opens MQTT connections.
type Dialer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewDialer returns a dialer for cfg.
func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults(), logger: log.WithComponent("mqttbus")}
}

func clientOptions(cfg Config, clientID string, events *infrabus.EventSink, logger zerolog.Logger) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(clientID).
		SetCleanSession(true).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval).
		SetWriteTimeout(cfg.WriteTimeout).
		SetOrderMatters(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	var once sync.Once
	opts.SetOnConnectHandler(func(mqtt.Client) {
		first := false
		once.Do(func() { first = true })
		if !first {
			logger.Info().Msg("mqtt connection restored")
			events.Emit(corebus.Event{Kind: corebus.EventOnline})
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost")
		events.Emit(corebus.Event{Kind: corebus.EventOffline, Err: err})
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Debug().Msg("mqtt reconnecting")
	})
	return opts
}

// Dial connects to the broker and waits for CONNACK.
func (d *Dialer) Dial(ctx context.Context, clientID string) (corebus.Conn, error) {
	logger := d.logger.With().Str(log.FieldClientID, clientID).Logger()
	events := infrabus.NewEventSink(transportName, 16)
	client := mqtt.NewClient(clientOptions(d.cfg, clientID, events, logger))

	if err := waitToken(ctx, client.Connect()); err != nil {
		client.Disconnect(0)
		events.Close()
		return nil, fmt.Errorf("mqtt connect %s: %w", d.cfg.BrokerURL, err)
	}
	logger.Debug().Str("broker", d.cfg.BrokerURL).Msg("mqtt bus connected")

	return &conn{
		client: client,
		events: events,
		logger: logger,
		cfg:    d.cfg,
		subs:   make(map[*subscription]struct{}),
	}, nil
}

func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

type conn struct {
	client mqtt.Client
	events *infrabus.EventSink
	logger zerolog.Logger
	cfg    Config

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *conn) Subscribe(ctx context.Context, topic string) (corebus.Subscription, error) {
	if topic == "" {
		return nil, corebus.ErrInvalidTopic
	}
	if c.isClosed() {
		return nil, corebus.ErrClosed
	}
	s := newSubscription(topic, func() error {
		c.forget(topic)
		return waitTokenTimeout(c.client.Unsubscribe(topic), c.cfg.WriteTimeout)
	})
	if err := waitToken(ctx, c.client.Subscribe(topic, byte(corebus.AtLeastOnce), s.handle)); err != nil {
		s.shutdown()
		c.events.Emit(corebus.Event{Kind: corebus.EventError, Err: err})
		return nil, fmt.Errorf("mqtt subscribe %q: %w", topic, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		s.shutdown()
		return nil, corebus.ErrClosed
	}
	c.subs[s] = struct{}{}
	return s, nil
}

func (c *conn) forget(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subs {
		if s.topic == topic {
			delete(c.subs, s)
		}
	}
}

func waitTokenTimeout(tok mqtt.Token, d time.Duration) error {
	if !tok.WaitTimeout(d) {
		return fmt.Errorf("mqtt: timed out after %s", d)
	}
	return tok.Error()
}

func (c *conn) Publish(ctx context.Context, topic string, payload []byte, qos corebus.QoS) error {
	if topic == "" {
		return corebus.ErrInvalidTopic
	}
	if c.isClosed() {
		metrics.IncPublishFailure(transportName, corebus.TopicKind(topic), qos.String())
		return corebus.ErrClosed
	}

	tok := c.client.Publish(topic, byte(qos), false, payload)
	if qos == corebus.AtMostOnce {
		// Fire and forget. A token that already failed is worth a log line.
		select {
		case <-tok.Done():
			if err := tok.Error(); err != nil {
				metrics.IncPublishFailure(transportName, corebus.TopicKind(topic), qos.String())
				c.logger.Warn().Err(err).Str(log.FieldTopic, topic).Msg("best-effort publish failed")
			}
		default:
		}
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	if err := waitToken(ctx, tok); err != nil {
		metrics.IncPublishFailure(transportName, corebus.TopicKind(topic), qos.String())
		c.events.Emit(corebus.Event{Kind: corebus.EventError, Err: err})
		return fmt.Errorf("mqtt publish %q: %w", topic, err)
	}
	return nil
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
	// quiesce lets in-flight acknowledgements complete.
	c.client.Disconnect(250)
	c.events.Close()
	return nil
}

// subscription buffers without bound so the paho router goroutine never
// blocks on a slow consumer.
type subscription struct {
	topic       string
	unsubscribe func() error

	mu      sync.Mutex
	pending []corebus.Message
	signal  chan struct{}

	ch   chan corebus.Message
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func newSubscription(topic string, unsubscribe func() error) *subscription {
	s := &subscription{
		topic:       topic,
		unsubscribe: unsubscribe,
		signal:      make(chan struct{}, 1),
		ch:          make(chan corebus.Message),
		done:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.pump()
	return s
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) C() <-chan corebus.Message { return s.ch }

func (s *subscription) handle(_ mqtt.Client, m mqtt.Message) {
	select {
	case <-s.done:
		return
	default:
	}
	msg := corebus.Message{Topic: m.Topic(), Payload: append([]byte(nil), m.Payload()...)}
	s.mu.Lock()
	s.pending = append(s.pending, msg)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
			return
		}
	}
}

func (s *subscription) Close() error {
	if !s.shutdown() {
		return corebus.ErrClosed
	}
	if s.unsubscribe != nil {
		return s.unsubscribe()
	}
	return nil
}

func (s *subscription) shutdown() bool {
	first := false
	s.once.Do(func() {
		first = true
		close(s.done)
		s.wg.Wait()
		close(s.ch)
	})
	return first
}

var _ corebus.Dialer = (*Dialer)(nil)
