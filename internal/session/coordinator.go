// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session bridges a request/response workload over pub/sub topics.
//
// A Coordinator owns one session: it connects the transport, announces
// itself on CONNECTED, feeds REQUEST messages one at a time to a
// RequestHandler and ends the session on inactivity, budget exhaustion, a
// remote END message or an explicit End call. Exactly one END notice is
// published per session, always before the transport is closed.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/namewhisk/internal/bus"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

// ClientIDPrefix prefixes transport client IDs.
const ClientIDPrefix = "namewhisk-"

// Coordinator runs a single session. It is not reusable.
type Coordinator struct {
	cfg       Config
	inv       Invocation
	topics    Topics
	budget    Budget
	dialer    bus.Dialer
	handler   RequestHandler
	sessionID string
	onDone    []func(Summary)
	logger    zerolog.Logger

	started atomic.Bool
	// ending flips once; the first End caller owns the single slot in endCh.
	ending    atomic.Bool
	endCh     chan Reason
	connected chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	summary Summary
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the session timings.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// OnDone registers a completion callback. Callbacks run once, after the
// transport is closed, in registration order.
func OnDone(fn func(Summary)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.onDone = append(c.onDone, fn)
		}
	}
}

// NewCoordinator prepares a session for inv. budget may be nil for an
// unlimited budget.
func NewCoordinator(inv Invocation, budget Budget, dialer bus.Dialer, handler RequestHandler, opts ...Option) (*Coordinator, error) {
	if inv.ChannelID == "" {
		return nil, fmt.Errorf("%w: channelId is required", ErrInvalidInvocation)
	}
	if dialer == nil || handler == nil {
		return nil, fmt.Errorf("%w: dialer and handler are required", ErrInvalidInvocation)
	}
	if budget == nil {
		budget = Unlimited{}
	}
	c := &Coordinator{
		cfg:       DefaultConfig(),
		inv:       inv,
		topics:    NewTopics(inv.ChannelID),
		budget:    budget,
		dialer:    dialer,
		handler:   handler,
		sessionID: uuid.NewString(),
		endCh:     make(chan Reason, 1),
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.normalized()
	c.logger = log.WithComponent("session").With().
		Str(log.FieldSessionID, c.sessionID).
		Str(log.FieldChannelID, inv.ChannelID).
		Logger()
	return c, nil
}

// SessionID returns the session identifier.
func (c *Coordinator) SessionID() string { return c.sessionID }

// Topics returns the session topic names.
func (c *Coordinator) Topics() Topics { return c.topics }

// Connected is closed once the session has subscribed and announced itself.
// It stays open when the transport could not be opened.
func (c *Coordinator) Connected() <-chan struct{} { return c.connected }

// Done is closed when Run has returned.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Summary returns the final session summary. It is only meaningful after
// Done is closed.
func (c *Coordinator) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// End requests termination with reason. Only the first request, from any
// source, takes effect; later calls are no-ops. End never blocks.
func (c *Coordinator) End(reason Reason) bool {
	if !c.ending.CompareAndSwap(false, true) {
		return false
	}
	c.endCh <- reason
	return true
}

// Ending reports whether termination has been requested.
func (c *Coordinator) Ending() bool { return c.ending.Load() }

// Run executes the session and blocks until it is terminated. A transport
// that cannot be opened is returned as ErrTransportUnavailable; every later
// problem ends the session normally and Run returns nil. Cancelling ctx ends
// the session as out of time.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(c.done)

	ctx = log.ContextWithSessionID(ctx, c.sessionID)
	startedAt := time.Now()
	clientID := ClientIDPrefix + uuid.NewString()

	conn, err := c.dialer.Dial(ctx, clientID)
	if err != nil {
		metrics.SessionConnectFailuresTotal.Inc()
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.connect_failed").Msg("transport unavailable")
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	reqSub, endSub, err := c.subscribe(ctx, conn)
	if err != nil {
		_ = conn.Close()
		metrics.SessionConnectFailuresTotal.Inc()
		c.logger.Error().Err(err).Str(log.FieldEvent, "session.subscribe_failed").Msg("transport unavailable")
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	metrics.RecordSessionStart()
	c.logger.Info().
		Str(log.FieldEvent, "session.connected").
		Str(log.FieldClientID, clientID).
		Msg("connected to broker")

	if err := conn.Publish(ctx, c.topics.Connected, []byte("{}"), bus.AtMostOnce); err != nil {
		c.logger.Warn().Err(err).Str(log.FieldTopic, c.topics.Connected).Msg("connected announcement failed")
	}
	close(c.connected)

	d := &dispatcher{
		c:      c,
		conn:   conn,
		reqSub: reqSub,
		endSub: endSub,
		gate:   &gatedPublisher{conn: conn, timeout: c.cfg.PublishTimeout},
	}
	summary := d.run(ctx)
	summary.SessionID = c.sessionID
	summary.ChannelID = c.inv.ChannelID
	summary.StartedAt = startedAt
	summary.EndedAt = time.Now()

	c.mu.Lock()
	c.summary = summary
	c.mu.Unlock()

	for _, fn := range c.onDone {
		fn(summary)
	}

	metrics.RecordSessionEnd(summary.Reason.String(), summary.EndedAt.Sub(startedAt))
	c.logger.Info().
		Str(log.FieldEvent, "session.end").
		Str(log.FieldReason, summary.Reason.String()).
		Int("requests", summary.Requests).
		Int("failures", summary.Failures).
		Int("dropped", summary.Dropped).
		Dur("duration", summary.EndedAt.Sub(startedAt)).
		Msg("session ended")
	return nil
}

func (c *Coordinator) subscribe(ctx context.Context, conn bus.Conn) (bus.Subscription, bus.Subscription, error) {
	reqSub, err := conn.Subscribe(ctx, c.topics.Request)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", c.topics.Request, err)
	}
	endSub, err := conn.Subscribe(ctx, c.topics.End)
	if err != nil {
		_ = reqSub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", c.topics.End, err)
	}
	return reqSub, endSub, nil
}

// dispatcher is the state owned by the dispatch goroutine of one session.
type dispatcher struct {
	c      *Coordinator
	conn   bus.Conn
	reqSub bus.Subscription
	endSub bus.Subscription
	gate   *gatedPublisher

	queue [][]byte
	busy  bool

	requests int
	failures int
}

func (d *dispatcher) run(ctx context.Context) Summary {
	c := d.c
	cfg := c.cfg
	logger := c.logger

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	work := make(chan []byte)
	results := make(chan bool)
	workerExited := make(chan struct{})
	go func() {
		defer close(workerExited)
		for payload := range work {
			results <- c.handler.Handle(workerCtx, d.gate, c.topics.Response, payload)
		}
	}()

	idle := time.NewTimer(cfg.InactivityTimeout)
	defer idle.Stop()
	budgetTick := time.NewTicker(cfg.BudgetInterval)
	defer budgetTick.Stop()

	d.checkBudget()

	reqC := d.reqSub.C()
	endC := d.endSub.C()
	events := d.conn.Events()
	ctxDone := ctx.Done()

	var reason Reason
dispatch:
	for {
		var sendC chan []byte
		var next []byte
		if !d.busy && len(d.queue) > 0 {
			sendC = work
			next = d.queue[0]
		}

		select {
		case reason = <-c.endCh:
			break dispatch

		case <-ctxDone:
			ctxDone = nil
			logger.Info().Err(ctx.Err()).Msg("context done, ending session")
			c.End(ReasonOutOfTime)

		case m, ok := <-reqC:
			if !ok {
				reqC = nil
				logger.Warn().Str(log.FieldTopic, c.topics.Request).Msg("request subscription closed by transport")
				continue
			}
			if c.Ending() {
				metrics.RequestsIgnoredTotal.Inc()
				logger.Debug().Msg("request ignored, session ending")
				continue
			}
			logger.Debug().
				Str(log.FieldEvent, "session.request").
				Int("queued", len(d.queue)+1).
				Msg("request received")
			d.queue = append(d.queue, m.Payload)
			idle.Stop()

		case m, ok := <-endC:
			if !ok {
				endC = nil
				logger.Warn().Str(log.FieldTopic, c.topics.End).Msg("end subscription closed by transport")
				continue
			}
			d.logRemoteEnd(m.Payload)
			c.End(ReasonRemote)

		case <-idle.C:
			logger.Info().
				Dur("timeout", cfg.InactivityTimeout).
				Msg("no requests received, timing out")
			c.End(ReasonInactivity)

		case <-budgetTick.C:
			d.checkBudget()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.logTransportEvent(ev)

		case sendC <- next:
			d.queue[0] = nil
			d.queue = d.queue[1:]
			d.busy = true

		case ok := <-results:
			d.busy = false
			d.record(ok)
			if len(d.queue) == 0 {
				idle.Reset(cfg.InactivityTimeout)
			}
		}
	}

	return d.terminate(ctx, reason, idle, budgetTick, cancelWorker, work, results, workerExited)
}

func (d *dispatcher) checkBudget() {
	remaining := d.c.budget.RemainingTime()
	if remaining < d.c.cfg.BudgetMargin {
		d.c.logger.Info().
			Dur("remaining", remaining).
			Msg("ran out of execution time")
		d.c.End(ReasonOutOfTime)
	}
}

func (d *dispatcher) record(ok bool) {
	d.requests++
	if !ok {
		d.failures++
	}
}

// terminate runs the shutdown sequence once. The END notice is the last
// publication of the session.
func (d *dispatcher) terminate(
	ctx context.Context,
	reason Reason,
	idle *time.Timer,
	budgetTick *time.Ticker,
	cancelWorker context.CancelFunc,
	work chan []byte,
	results chan bool,
	workerExited chan struct{},
) Summary {
	c := d.c
	logger := c.logger
	idle.Stop()
	budgetTick.Stop()

	// Stop in-flight work and wait until no response publish is running.
	d.gate.close(cancelWorker)

	if err := d.endSub.Close(); err != nil {
		logger.Debug().Err(err).Msg("unsubscribe end topic")
	}

	notice, _ := json.Marshal(newEndNotice(c.inv.ChannelID, reason))
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.PublishTimeout)
	if err := d.conn.Publish(pubCtx, c.topics.End, notice, bus.AtLeastOnce); err != nil {
		logger.Error().Err(err).
			Str(log.FieldEvent, "session.end_publish_failed").
			Str(log.FieldTopic, c.topics.End).
			Msg("failed to publish end notice")
	}
	cancel()

	if err := d.conn.Close(); err != nil {
		logger.Debug().Err(err).Msg("close transport")
	}

	close(work)
drain:
	for {
		select {
		case ok := <-results:
			d.record(ok)
		case <-workerExited:
			break drain
		}
	}

	return Summary{
		Reason:   reason,
		Requests: d.requests,
		Failures: d.failures,
		Dropped:  len(d.queue),
	}
}

func (d *dispatcher) logRemoteEnd(payload []byte) {
	var msg RemoteEnd
	logger := d.c.logger
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Warn().Err(err).Msg("unparseable end message")
	}
	if msg.Disconnected {
		logger.Info().Str(log.FieldEvent, "session.remote_end").Msg("client disconnected")
		return
	}
	logger.Info().Str(log.FieldEvent, "session.remote_end").Msg("client ended session")
}

func (d *dispatcher) logTransportEvent(ev bus.Event) {
	logger := d.c.logger
	switch ev.Kind {
	case bus.EventOffline:
		logger.Warn().Err(ev.Err).Str(log.FieldEvent, "transport.offline").Msg("transport offline")
	case bus.EventOnline:
		logger.Info().Str(log.FieldEvent, "transport.online").Msg("transport back online")
	default:
		logger.Warn().Err(ev.Err).Str(log.FieldEvent, "transport.error").Msg("transport error")
	}
}

// gatedPublisher lets handler publishes through until the session starts
// terminating. close waits for publishes already in progress.
type gatedPublisher struct {
	conn    bus.Conn
	timeout time.Duration

	// mu is held for reading by every publish in progress.
	mu      sync.RWMutex
	closing atomic.Bool
}

func (g *gatedPublisher) Publish(ctx context.Context, topic string, payload []byte, qos bus.QoS) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closing.Load() {
		return ErrSessionEnding
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.conn.Publish(ctx, topic, payload, qos)
}

// close rejects new publishes, runs cancel to abort the ones in progress
// and waits for them to return.
func (g *gatedPublisher) close(cancel context.CancelFunc) {
	g.closing.Store(true)
	cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
}
