// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/namewhisk/internal/api"
	"github.com/ManuGH/namewhisk/internal/log"
)

// App owns the serve lifecycle: the HTTP invocation API and the sessions it
// launched.
type App struct {
	logger          zerolog.Logger
	runtime         *Runtime
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewApp creates the serve orchestrator for rt.
func NewApp(rt *Runtime) (*App, error) {
	if rt == nil || rt.Launcher == nil {
		return nil, ErrMissingLauncher
	}
	cfg := rt.Config
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Logging.Service + "-api"
	}
	handler := api.New(api.Config{
		InvokeRate:     cfg.API.InvokeRate,
		TracingService: tracing,
	}, rt.Launcher, rt.Ledger).Handler()

	return &App{
		logger:  log.WithComponent("daemon"),
		runtime: rt,
		server: &http.Server{
			Addr:              cfg.API.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		shutdownTimeout: cfg.API.ShutdownTimeout,
	}, nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails, then shuts
// down: the API stops accepting, live sessions end as out of time and the
// runtime is released.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	a.logger.Info().
		Str(log.FieldEvent, "daemon.start").
		Str("listen", ln.Addr().String()).
		Msg("serving invocation API")

	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(ctx)
	})

	return g.Wait()
}

func (a *App) shutdown(ctx context.Context) error {
	a.logger.Info().Str(log.FieldEvent, "daemon.shutdown").Msg("shutting down")

	// Use a detached-but-bounded context so shutdown can complete even if parent is canceled.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
	}
	if err := a.runtime.Launcher.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := a.runtime.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	a.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}
