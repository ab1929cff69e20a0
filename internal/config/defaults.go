// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/namewhisk/internal/availability"
	"github.com/ManuGH/namewhisk/internal/candidates"
	"github.com/ManuGH/namewhisk/internal/session"
)

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() AppConfig {
	return AppConfig{
		Logging: LoggingConfig{
			Level:   "info",
			Service: "namewhisk",
		},
		Transport: TransportConfig{
			Kind: TransportMemory,
			Redis: RedisConfig{
				Addr:        "localhost:6379",
				DialTimeout: 5 * time.Second,
			},
			MQTT: MQTTConfig{
				BrokerURL:            "tcp://localhost:1883",
				KeepAlive:            30 * time.Second,
				ConnectTimeout:       10 * time.Second,
				MaxReconnectInterval: 10 * time.Second,
				WriteTimeout:         10 * time.Second,
			},
		},
		Session: SessionConfig{
			InactivityTimeout: session.DefaultInactivityTimeout,
			BudgetMargin:      session.DefaultBudgetMargin,
			BudgetInterval:    session.DefaultBudgetInterval,
			PublishTimeout:    session.DefaultPublishTimeout,
			DefaultBudget:     15 * time.Minute,
		},
		Candidates: CandidatesConfig{
			DefaultLimit:   candidates.DefaultLimit,
			MaxLimit:       candidates.MaxLimit,
			SuggestURL:     candidates.DefaultSuggestURL,
			SuggestTimeout: 5 * time.Second,
			AllowedPattern: candidates.DefaultAllowedPattern,
		},
		Availability: AvailabilityConfig{
			RDAPBaseURL:      availability.DefaultRDAPBaseURL,
			Timeout:          10 * time.Second,
			Concurrency:      8,
			Rate:             10,
			Burst:            10,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
			Cache: CacheConfig{
				Backend:   CacheMemory,
				TTL:       availability.DefaultCacheTTL,
				RedisAddr: "localhost:6379",
				KeyPrefix: "namewhisk:",
			},
		},
		API: APIConfig{
			ListenAddr:      ":8080",
			InvokeRate:      60,
			MaxSessions:     64,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend:  StoreMemory,
			Path:     "namewhisk.db",
			Capacity: 1000,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			Insecure:     true,
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}
