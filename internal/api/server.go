// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the HTTP invocation surface of the daemon.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/namewhisk/internal/api/middleware"
	"github.com/ManuGH/namewhisk/internal/session"
	"github.com/ManuGH/namewhisk/internal/store"
)

// LiveSession describes a session that has not finished yet.
type LiveSession struct {
	SessionID string    `json:"sessionId"`
	ChannelID string    `json:"channelId"`
	StartedAt time.Time `json:"startedAt"`
	Ending    bool      `json:"ending"`
}

// Invoker starts sessions on behalf of the API.
type Invoker interface {
	// Invoke starts a session for inv with the given budget and returns once
	// it is connected. A zero budget selects the daemon default.
	Invoke(ctx context.Context, inv session.Invocation, budget time.Duration) (*session.Coordinator, error)
	// Live lists sessions that are still running.
	Live() []LiveSession
}

// Config configures the HTTP server.
type Config struct {
	// InvokeRate limits invocations per client IP and minute; zero disables it.
	InvokeRate int
	// TracingService names the otelhttp server spans; empty disables tracing.
	TracingService string
}

// Server routes HTTP requests to the invoker and the session ledger.
type Server struct {
	cfg     Config
	invoker Invoker
	ledger  store.Store
}

// New creates a Server.
func New(cfg Config, invoker Invoker, ledger store.Store) *Server {
	return &Server{cfg: cfg, invoker: invoker, ledger: ledger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit: s.cfg.InvokeRate,
			WindowSize:   time.Minute,
		})).Post("/invocations", s.handleInvoke)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/live", s.handleLiveSessions)
	})
	return r
}
