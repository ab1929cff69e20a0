// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // Mechanical tracking of consumed keys
	environ         func() []string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
		environ:         os.Environ,
	}
}

// Wrapper methods for mechanical connection tracking

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing. Keys absent
// from the file keep their current value; unknown keys are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && isUnknownFieldError(typeErr) {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func isUnknownFieldError(err *yaml.TypeError) bool {
	for _, msg := range err.Errors {
		if strings.Contains(msg, "field") && strings.Contains(msg, "not found") {
			return true
		}
	}
	return false
}

// mergeEnvConfig applies NAMEWHISK_* overrides on top of cfg.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Logging.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Service = l.envString(EnvPrefix+"LOG_SERVICE", cfg.Logging.Service)

	t := &cfg.Transport
	t.Kind = l.envString(EnvPrefix+"TRANSPORT", t.Kind)
	t.Redis.Addr = l.envString(EnvPrefix+"REDIS_ADDR", t.Redis.Addr)
	t.Redis.Username = l.envString(EnvPrefix+"REDIS_USERNAME", t.Redis.Username)
	t.Redis.Password = l.envString(EnvPrefix+"REDIS_PASSWORD", t.Redis.Password)
	t.Redis.DB = l.envInt(EnvPrefix+"REDIS_DB", t.Redis.DB)
	t.Redis.DialTimeout = l.envDuration(EnvPrefix+"REDIS_DIAL_TIMEOUT", t.Redis.DialTimeout)
	t.MQTT.BrokerURL = l.envString(EnvPrefix+"MQTT_BROKER_URL", t.MQTT.BrokerURL)
	t.MQTT.Username = l.envString(EnvPrefix+"MQTT_USERNAME", t.MQTT.Username)
	t.MQTT.Password = l.envString(EnvPrefix+"MQTT_PASSWORD", t.MQTT.Password)
	t.MQTT.KeepAlive = l.envDuration(EnvPrefix+"MQTT_KEEPALIVE", t.MQTT.KeepAlive)
	t.MQTT.ConnectTimeout = l.envDuration(EnvPrefix+"MQTT_CONNECT_TIMEOUT", t.MQTT.ConnectTimeout)

	s := &cfg.Session
	s.InactivityTimeout = l.envDuration(EnvPrefix+"INACTIVITY_TIMEOUT", s.InactivityTimeout)
	s.BudgetMargin = l.envDuration(EnvPrefix+"BUDGET_MARGIN", s.BudgetMargin)
	s.BudgetInterval = l.envDuration(EnvPrefix+"BUDGET_INTERVAL", s.BudgetInterval)
	s.PublishTimeout = l.envDuration(EnvPrefix+"PUBLISH_TIMEOUT", s.PublishTimeout)
	s.DefaultBudget = l.envDuration(EnvPrefix+"DEFAULT_BUDGET", s.DefaultBudget)

	c := &cfg.Candidates
	c.DefaultLimit = l.envInt(EnvPrefix+"CANDIDATES_DEFAULT_LIMIT", c.DefaultLimit)
	c.MaxLimit = l.envInt(EnvPrefix+"CANDIDATES_MAX_LIMIT", c.MaxLimit)
	c.SuggestURL = l.envString(EnvPrefix+"SUGGEST_URL", c.SuggestURL)
	c.SuggestTimeout = l.envDuration(EnvPrefix+"SUGGEST_TIMEOUT", c.SuggestTimeout)
	c.AllowedPattern = l.envString(EnvPrefix+"ALLOWED_PATTERN", c.AllowedPattern)

	a := &cfg.Availability
	a.RDAPBaseURL = l.envString(EnvPrefix+"RDAP_URL", a.RDAPBaseURL)
	a.Timeout = l.envDuration(EnvPrefix+"RDAP_TIMEOUT", a.Timeout)
	a.Rate = l.envFloat(EnvPrefix+"RDAP_RATE", a.Rate)
	a.Burst = l.envInt(EnvPrefix+"RDAP_BURST", a.Burst)
	a.Concurrency = l.envInt(EnvPrefix+"CHECK_CONCURRENCY", a.Concurrency)
	a.BreakerThreshold = l.envInt(EnvPrefix+"BREAKER_THRESHOLD", a.BreakerThreshold)
	a.BreakerReset = l.envDuration(EnvPrefix+"BREAKER_RESET", a.BreakerReset)
	a.Cache.Backend = l.envString(EnvPrefix+"CACHE_BACKEND", a.Cache.Backend)
	a.Cache.TTL = l.envDuration(EnvPrefix+"CACHE_TTL", a.Cache.TTL)
	a.Cache.RedisAddr = l.envString(EnvPrefix+"CACHE_REDIS_ADDR", a.Cache.RedisAddr)
	a.Cache.Password = l.envString(EnvPrefix+"CACHE_REDIS_PASSWORD", a.Cache.Password)

	cfg.API.ListenAddr = l.envString(EnvPrefix+"LISTEN", cfg.API.ListenAddr)
	cfg.API.InvokeRate = l.envInt(EnvPrefix+"INVOKE_RATE", cfg.API.InvokeRate)
	cfg.API.MaxSessions = l.envInt(EnvPrefix+"MAX_SESSIONS", cfg.API.MaxSessions)
	cfg.API.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Store.Backend = l.envString(EnvPrefix+"STORE", cfg.Store.Backend)
	cfg.Store.Path = l.envString(EnvPrefix+"STORE_PATH", cfg.Store.Path)
	cfg.Store.Capacity = l.envInt(EnvPrefix+"STORE_CAPACITY", cfg.Store.Capacity)

	tel := &cfg.Telemetry
	tel.Enabled = l.envBool(EnvPrefix+"OTEL_ENABLED", tel.Enabled)
	tel.ExporterType = l.envString(EnvPrefix+"OTEL_EXPORTER", tel.ExporterType)
	tel.Endpoint = l.envString(EnvPrefix+"OTEL_ENDPOINT", tel.Endpoint)
	tel.Insecure = l.envBool(EnvPrefix+"OTEL_INSECURE", tel.Insecure)
	tel.SamplingRate = l.envFloat(EnvPrefix+"OTEL_SAMPLING_RATE", tel.SamplingRate)
	tel.Environment = l.envString(EnvPrefix+"OTEL_ENVIRONMENT", tel.Environment)
}

// UnknownEnvKeys reports NAMEWHISK_* keys present in the environment that
// Load did not consume, which usually means a typo. Call it after Load.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, pair := range l.environ() {
		key, _, _ := strings.Cut(pair, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}
