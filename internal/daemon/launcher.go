// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/namewhisk/internal/api"
	"github.com/ManuGH/namewhisk/internal/bus"
	"github.com/ManuGH/namewhisk/internal/config"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/session"
	"github.com/ManuGH/namewhisk/internal/store"
)

const ledgerWriteTimeout = 5 * time.Second

// LauncherConfig configures session launching.
type LauncherConfig struct {
	Session session.Config
	// DefaultBudget applies when an invocation brings no budget.
	DefaultBudget time.Duration
	// MaxSessions bounds the number of live sessions; zero means unbounded.
	MaxSessions int
}

// Settings returns c, so a fixed LauncherConfig is its own source.
func (c LauncherConfig) Settings() LauncherConfig { return c }

// SettingsSource yields the launcher settings for the next invocation.
type SettingsSource interface {
	Settings() LauncherConfig
}

// HolderSource reads launcher settings from a reloadable configuration.
type HolderSource struct {
	Holder *config.ConfigHolder
}

// Settings maps the current configuration.
func (s HolderSource) Settings() LauncherConfig {
	return LauncherSettings(s.Holder.Get())
}

// LauncherSettings maps the invocation related sections of cfg.
func LauncherSettings(cfg config.AppConfig) LauncherConfig {
	return LauncherConfig{
		Session:       SessionConfig(cfg.Session),
		DefaultBudget: cfg.Session.DefaultBudget,
		MaxSessions:   cfg.API.MaxSessions,
	}
}

type liveEntry struct {
	coord     *session.Coordinator
	channelID string
	startedAt time.Time
}

// Launcher starts sessions, tracks the live ones and records finished
// sessions in the ledger.
type Launcher struct {
	src     SettingsSource
	dialer  bus.Dialer
	handler session.RequestHandler
	ledger  store.Store
	logger  zerolog.Logger

	mu      sync.Mutex
	live    map[string]liveEntry
	closing bool
	wg      sync.WaitGroup
}

var _ api.Invoker = (*Launcher)(nil)

// NewLauncher creates a Launcher. src is consulted on every Invoke; ledger
// may be nil.
func NewLauncher(src SettingsSource, dialer bus.Dialer, handler session.RequestHandler, ledger store.Store) *Launcher {
	return &Launcher{
		src:     src,
		dialer:  dialer,
		handler: handler,
		ledger:  ledger,
		logger:  log.WithComponent("launcher"),
		live:    make(map[string]liveEntry),
	}
}

// Invoke starts a session and returns once it is connected. The session
// outlives ctx; cancelling ctx only stops the wait.
func (l *Launcher) Invoke(ctx context.Context, inv session.Invocation, budget time.Duration) (*session.Coordinator, error) {
	cfg := l.src.Settings()
	if budget <= 0 {
		budget = cfg.DefaultBudget
	}
	var b session.Budget = session.Unlimited{}
	if budget > 0 {
		b = session.DeadlineAfter(budget)
	}

	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", api.ErrUnavailable, ErrShuttingDown)
	}
	if cfg.MaxSessions > 0 && len(l.live) >= cfg.MaxSessions {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", api.ErrUnavailable, ErrAtCapacity)
	}
	coord, err := session.NewCoordinator(inv, b, l.dialer, l.handler,
		session.WithConfig(cfg.Session),
		session.OnDone(l.record))
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	id := coord.SessionID()
	l.live[id] = liveEntry{coord: coord, channelID: inv.ChannelID, startedAt: time.Now()}
	l.wg.Add(1)
	l.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		defer l.wg.Done()
		defer l.forget(id)
		errCh <- coord.Run(context.WithoutCancel(ctx))
	}()

	select {
	case <-coord.Connected():
		return coord, nil
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return coord, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Live lists the running sessions, oldest first.
func (l *Launcher) Live() []api.LiveSession {
	l.mu.Lock()
	out := make([]api.LiveSession, 0, len(l.live))
	for id, e := range l.live {
		out = append(out, api.LiveSession{
			SessionID: id,
			ChannelID: e.channelID,
			StartedAt: e.startedAt,
			Ending:    e.coord.Ending(),
		})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Shutdown refuses new invocations, ends every live session as out of time
// and waits for them to finish or for ctx to expire.
func (l *Launcher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	coords := make([]*session.Coordinator, 0, len(l.live))
	for _, e := range l.live {
		coords = append(coords, e.coord)
	}
	l.mu.Unlock()

	for _, c := range coords {
		c.End(session.ReasonOutOfTime)
	}
	l.logger.Info().
		Str(log.FieldEvent, "launcher.shutdown").
		Int("live", len(coords)).
		Msg("ending live sessions")

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for sessions: %w", ctx.Err())
	}
}

func (l *Launcher) forget(id string) {
	l.mu.Lock()
	delete(l.live, id)
	l.mu.Unlock()
}

func (l *Launcher) record(s session.Summary) {
	if l.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ledgerWriteTimeout)
	defer cancel()
	if err := l.ledger.Save(ctx, RecordFromSummary(s)); err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Error().Err(err).
			Str(log.FieldEvent, "ledger.save_failed").
			Str(log.FieldSessionID, s.SessionID).
			Msg("failed to record session")
	}
}

// RecordFromSummary converts a session summary into a ledger record.
func RecordFromSummary(s session.Summary) store.Record {
	return store.Record{
		SessionID: s.SessionID,
		ChannelID: s.ChannelID,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Reason:    s.Reason.String(),
		Requests:  s.Requests,
		Failures:  s.Failures,
		Dropped:   s.Dropped,
	}
}
