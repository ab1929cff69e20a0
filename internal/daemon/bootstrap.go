// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package daemon wires configuration into running sessions and owns the
// serve lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/namewhisk/internal/availability"
	"github.com/ManuGH/namewhisk/internal/bus"
	"github.com/ManuGH/namewhisk/internal/cache"
	"github.com/ManuGH/namewhisk/internal/candidates"
	"github.com/ManuGH/namewhisk/internal/config"
	"github.com/ManuGH/namewhisk/internal/infra/bus/mqttbus"
	"github.com/ManuGH/namewhisk/internal/infra/bus/redisbus"
	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/session"
	"github.com/ManuGH/namewhisk/internal/store"
	"github.com/ManuGH/namewhisk/internal/telemetry"
)

// ShutdownHook is a function that performs cleanup during graceful shutdown.
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Runtime holds every long-lived component built from the configuration.
type Runtime struct {
	Config   config.AppConfig
	Launcher *Launcher
	Ledger   store.Store
	// Holder supplies the reloadable settings read per invocation.
	Holder *config.ConfigHolder
	// Bus is the in-process broker when the memory transport is selected.
	Bus *bus.MemoryBus

	logger zerolog.Logger
	hooks  []namedHook
}

// BootstrapOption customizes Bootstrap.
type BootstrapOption func(*Runtime)

// WithConfigHolder lets the launcher follow configuration reloads. The
// holder's current configuration must be the one passed to Bootstrap.
func WithConfigHolder(h *config.ConfigHolder) BootstrapOption {
	return func(rt *Runtime) { rt.Holder = h }
}

// Bootstrap builds the runtime. On error every component built so far is
// released again.
func Bootstrap(ctx context.Context, cfg config.AppConfig, opts ...BootstrapOption) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, logger: log.WithComponent("daemon")}
	for _, opt := range opts {
		opt(rt)
	}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, TelemetryConfig(cfg))
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	rt.addHook("telemetry", tp.Shutdown)

	dialer, memBus, err := NewDialer(cfg.Transport)
	if err != nil {
		return rt, err
	}
	rt.Bus = memBus

	avCache, err := NewCache(ctx, cfg.Availability.Cache)
	if err != nil {
		return rt, fmt.Errorf("availability cache: %w", err)
	}
	rt.addHook("cache", func(context.Context) error { return avCache.Close() })

	handler, err := NewHandler(cfg, NewChecker(cfg.Availability, avCache))
	if err != nil {
		return rt, err
	}

	ledger, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return rt, fmt.Errorf("session ledger: %w", err)
	}
	rt.Ledger = ledger
	rt.addHook("ledger", func(context.Context) error { return ledger.Close() })

	if rt.Holder == nil {
		rt.Holder = config.NewConfigHolder(cfg, nil)
	}
	rt.Launcher = NewLauncher(HolderSource{Holder: rt.Holder}, dialer, handler, ledger)

	rt.logger.Info().
		Str(log.FieldEvent, "daemon.bootstrap").
		Str(log.FieldTransport, cfg.Transport.Kind).
		Str("cache", cfg.Availability.Cache.Backend).
		Str("store", cfg.Store.Backend).
		Bool("tracing", cfg.Telemetry.Enabled).
		Msg("runtime ready")
	return rt, nil
}

func (rt *Runtime) addHook(name string, hook ShutdownHook) {
	rt.hooks = append(rt.hooks, namedHook{name: name, hook: hook})
}

// Close releases the runtime components in reverse construction order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.hooks) - 1; i >= 0; i-- {
		h := rt.hooks[i]
		hookStart := time.Now()
		if err := h.hook(ctx); err != nil {
			rt.logger.Error().Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(hookStart)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
	}
	rt.hooks = nil
	return errors.Join(errs...)
}

// SessionConfig maps the session section onto coordinator timings.
func SessionConfig(c config.SessionConfig) session.Config {
	return session.Config{
		InactivityTimeout: c.InactivityTimeout,
		BudgetMargin:      c.BudgetMargin,
		BudgetInterval:    c.BudgetInterval,
		PublishTimeout:    c.PublishTimeout,
	}
}

// TelemetryConfig maps the telemetry section onto the tracer provider config.
func TelemetryConfig(cfg config.AppConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Logging.Service,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}
}

// NewDialer returns the dialer for the configured transport. The memory
// transport also returns its broker so in-process clients can attach.
func NewDialer(t config.TransportConfig) (bus.Dialer, *bus.MemoryBus, error) {
	switch t.Kind {
	case config.TransportMemory, "":
		b := bus.NewMemoryBus()
		return b, b, nil
	case config.TransportRedis:
		return redisbus.NewDialer(redisbus.Config{
			Addr:        t.Redis.Addr,
			Username:    t.Redis.Username,
			Password:    t.Redis.Password,
			DB:          t.Redis.DB,
			DialTimeout: t.Redis.DialTimeout,
		}), nil, nil
	case config.TransportMQTT:
		return mqttbus.NewDialer(mqttbus.Config{
			BrokerURL:            t.MQTT.BrokerURL,
			Username:             t.MQTT.Username,
			Password:             t.MQTT.Password,
			KeepAlive:            t.MQTT.KeepAlive,
			ConnectTimeout:       t.MQTT.ConnectTimeout,
			MaxReconnectInterval: t.MQTT.MaxReconnectInterval,
			WriteTimeout:         t.MQTT.WriteTimeout,
		}), nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTransport, t.Kind)
	}
}

// NewCache builds the availability cache backend.
func NewCache(ctx context.Context, c config.CacheConfig) (cache.Cache, error) {
	switch c.Backend {
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      c.RedisAddr,
			Password:  c.Password,
			DB:        c.DB,
			KeyPrefix: c.KeyPrefix,
		}, log.WithComponent("cache"))
	case config.CacheNone:
		return cache.NewNoOpCache(), nil
	default:
		return cache.NewMemoryCache(time.Minute), nil
	}
}

// NewChecker builds the RDAP checker, cached unless caching is disabled.
func NewChecker(a config.AvailabilityConfig, c cache.Cache) availability.Checker {
	rdap := availability.NewRDAPChecker(availability.RDAPConfig{
		BaseURL:          a.RDAPBaseURL,
		Timeout:          a.Timeout,
		Rate:             a.Rate,
		Burst:            a.Burst,
		BreakerThreshold: a.BreakerThreshold,
		BreakerReset:     a.BreakerReset,
	}, nil)
	if a.Cache.Backend == config.CacheNone || c == nil {
		return rdap
	}
	return availability.NewCachedChecker(rdap, c, a.Cache.TTL)
}

// NewHandler builds the request handler from the candidate settings.
func NewHandler(cfg config.AppConfig, checker availability.Checker) (*session.Handler, error) {
	c := cfg.Candidates
	san, err := candidates.NewSanitizer(c.AllowedPattern)
	if err != nil {
		return nil, fmt.Errorf("allowed pattern: %w", err)
	}
	var sug candidates.Suggester
	if c.SuggestURL != "" {
		sug = candidates.NewHTTPSuggester(c.SuggestURL, c.SuggestTimeout)
	}
	return session.NewHandler(
		candidates.NewWhimsical(c.DefaultLimit, c.MaxLimit),
		sug, san, checker,
		session.WithCheckConcurrency(cfg.Availability.Concurrency),
	), nil
}

// OpenStore opens the configured session ledger.
func OpenStore(ctx context.Context, s config.StoreConfig) (store.Store, error) {
	if s.Backend == config.StoreSQLite {
		return store.OpenSQLite(ctx, s.Path)
	}
	return store.NewMemoryStore(s.Capacity), nil
}
