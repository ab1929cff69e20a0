// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/namewhisk/internal/session"
	"github.com/ManuGH/namewhisk/internal/validate"
)

// Validate checks the resolved configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.Logging.Level); err != nil {
		v.AddError("logging.level", "must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	validateTransport(v, cfg.Transport)
	validateSession(v, cfg.Session)
	validateCandidates(v, cfg.Candidates)
	validateAvailability(v, cfg.Availability)

	v.ListenAddr("api.listenAddr", cfg.API.ListenAddr)
	v.NonNegative("api.invokeRate", cfg.API.InvokeRate)
	v.Positive("api.maxSessions", cfg.API.MaxSessions)
	v.MinDuration("api.shutdownTimeout", cfg.API.ShutdownTimeout, time.Second)

	v.OneOf("store.backend", cfg.Store.Backend, []string{StoreMemory, StoreSQLite})
	if cfg.Store.Backend == StoreSQLite {
		v.NotEmpty("store.path", cfg.Store.Path)
	}
	v.Positive("store.capacity", cfg.Store.Capacity)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporterType", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

func validateTransport(v *validate.Validator, t TransportConfig) {
	v.OneOf("transport.kind", t.Kind, []string{TransportMemory, TransportRedis, TransportMQTT})
	switch t.Kind {
	case TransportRedis:
		v.NotEmpty("transport.redis.addr", t.Redis.Addr)
		v.Range("transport.redis.db", t.Redis.DB, 0, 15)
	case TransportMQTT:
		v.URL("transport.mqtt.brokerUrl", t.MQTT.BrokerURL, []string{"tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts"})
		v.MinDuration("transport.mqtt.keepAlive", t.MQTT.KeepAlive, time.Second)
	}
}

func validateSession(v *validate.Validator, s SessionConfig) {
	v.MinDuration("session.inactivityTimeout", s.InactivityTimeout, session.MinTick)
	v.MinDuration("session.budgetInterval", s.BudgetInterval, session.MinTick)
	v.MinDuration("session.budgetMargin", s.BudgetMargin, 0)
	v.MinDuration("session.publishTimeout", s.PublishTimeout, session.MinTick)
	if s.DefaultBudget <= s.BudgetMargin {
		v.AddError("session.defaultBudget",
			fmt.Sprintf("must exceed session.budgetMargin (%s)", s.BudgetMargin), s.DefaultBudget)
	}
}

func validateCandidates(v *validate.Validator, c CandidatesConfig) {
	v.Positive("candidates.defaultLimit", c.DefaultLimit)
	v.Positive("candidates.maxLimit", c.MaxLimit)
	if c.DefaultLimit > c.MaxLimit {
		v.AddError("candidates.defaultLimit",
			fmt.Sprintf("must not exceed candidates.maxLimit (%d)", c.MaxLimit), c.DefaultLimit)
	}
	if c.SuggestURL != "" {
		v.URL("candidates.suggestUrl", c.SuggestURL, []string{"http", "https"})
	}
	v.Pattern("candidates.allowedPattern", c.AllowedPattern)
}

func validateAvailability(v *validate.Validator, a AvailabilityConfig) {
	v.URL("availability.rdapBaseUrl", a.RDAPBaseURL, []string{"http", "https"})
	v.MinDuration("availability.timeout", a.Timeout, session.MinTick)
	v.Range("availability.concurrency", a.Concurrency, 1, 64)
	if a.Rate < 0 {
		v.AddError("availability.rate", "value cannot be negative", a.Rate)
	}
	if a.Rate > 0 {
		v.Positive("availability.burst", a.Burst)
	}
	v.Positive("availability.breakerThreshold", a.BreakerThreshold)
	v.MinDuration("availability.breakerReset", a.BreakerReset, time.Second)

	v.OneOf("availability.cache.backend", a.Cache.Backend, []string{CacheMemory, CacheRedis, CacheNone})
	if a.Cache.Backend != CacheNone {
		v.MinDuration("availability.cache.ttl", a.Cache.TTL, time.Second)
	}
	if a.Cache.Backend == CacheRedis {
		v.NotEmpty("availability.cache.redisAddr", a.Cache.RedisAddr)
	}
}
