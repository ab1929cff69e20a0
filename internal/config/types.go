// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Transport kinds.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportMQTT   = "mqtt"
)

// Cache backends for availability lookups.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Store backends for the session ledger.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Logging      LoggingConfig      `yaml:"logging"`
	Transport    TransportConfig    `yaml:"transport"`
	Session      SessionConfig      `yaml:"session"`
	Candidates   CandidatesConfig   `yaml:"candidates"`
	Availability AvailabilityConfig `yaml:"availability"`
	API          APIConfig          `yaml:"api"`
	Store        StoreConfig        `yaml:"store"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// TransportConfig selects the pub/sub broker sessions talk through.
type TransportConfig struct {
	Kind  string      `yaml:"kind"`
	Redis RedisConfig `yaml:"redis"`
	MQTT  MQTTConfig  `yaml:"mqtt"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

type MQTTConfig struct {
	BrokerURL            string        `yaml:"brokerUrl"`
	Username             string        `yaml:"username"`
	Password             string        `yaml:"password"`
	KeepAlive            time.Duration `yaml:"keepAlive"`
	ConnectTimeout       time.Duration `yaml:"connectTimeout"`
	MaxReconnectInterval time.Duration `yaml:"maxReconnectInterval"`
	WriteTimeout         time.Duration `yaml:"writeTimeout"`
}

// SessionConfig holds the coordinator timings. DefaultBudget is the
// remaining time granted to invocations that do not bring their own.
type SessionConfig struct {
	InactivityTimeout time.Duration `yaml:"inactivityTimeout"`
	BudgetMargin      time.Duration `yaml:"budgetMargin"`
	BudgetInterval    time.Duration `yaml:"budgetInterval"`
	PublishTimeout    time.Duration `yaml:"publishTimeout"`
	DefaultBudget     time.Duration `yaml:"defaultBudget"`
}

type CandidatesConfig struct {
	DefaultLimit   int           `yaml:"defaultLimit"`
	MaxLimit       int           `yaml:"maxLimit"`
	SuggestURL     string        `yaml:"suggestUrl"`
	SuggestTimeout time.Duration `yaml:"suggestTimeout"`
	AllowedPattern string        `yaml:"allowedPattern"`
}

type AvailabilityConfig struct {
	RDAPBaseURL      string        `yaml:"rdapBaseUrl"`
	Timeout          time.Duration `yaml:"timeout"`
	Concurrency      int           `yaml:"concurrency"`
	Rate             float64       `yaml:"rate"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
	Cache            CacheConfig   `yaml:"cache"`
}

type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	TTL       time.Duration `yaml:"ttl"`
	RedisAddr string        `yaml:"redisAddr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"keyPrefix"`
}

// APIConfig configures the invocation HTTP surface of "serve".
type APIConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	InvokeRate      int           `yaml:"invokeRate"`
	MaxSessions     int           `yaml:"maxSessions"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporterType"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
