// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	want := Default()
	want.Version = "v1.2.3"
	assert.Equal(t, want, cfg)
	assert.Equal(t, 30*time.Second, cfg.Session.InactivityTimeout)
	assert.Equal(t, 5*time.Second, cfg.Session.BudgetMargin)
	assert.Equal(t, time.Second, cfg.Session.BudgetInterval)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := NewLoader("testdata/valid.yaml", "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, TransportRedis, cfg.Transport.Kind)
	assert.Equal(t, "redis.internal:6379", cfg.Transport.Redis.Addr)
	assert.Equal(t, 2, cfg.Transport.Redis.DB)
	assert.Equal(t, 45*time.Second, cfg.Session.InactivityTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Session.DefaultBudget)
	assert.Equal(t, CacheNone, cfg.Availability.Cache.Backend)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)

	// untouched keys keep their defaults
	assert.Equal(t, 5*time.Second, cfg.Session.BudgetMargin)
	assert.Equal(t, Default().Availability.Timeout, cfg.Availability.Timeout)
	assert.Equal(t, "namewhisk", cfg.Logging.Service)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("NAMEWHISK_TRANSPORT", "mqtt")
	t.Setenv("NAMEWHISK_MQTT_BROKER_URL", "tcp://broker:1883")
	t.Setenv("NAMEWHISK_INACTIVITY_TIMEOUT", "1m")
	t.Setenv("NAMEWHISK_RDAP_RATE", "2.5")
	t.Setenv("NAMEWHISK_OTEL_ENABLED", "yes")
	t.Setenv("NAMEWHISK_REDIS_DB", "not-a-number")

	cfg, err := NewLoader("testdata/valid.yaml", "").Load()
	require.NoError(t, err)

	assert.Equal(t, TransportMQTT, cfg.Transport.Kind)
	assert.Equal(t, "tcp://broker:1883", cfg.Transport.MQTT.BrokerURL)
	assert.Equal(t, time.Minute, cfg.Session.InactivityTimeout)
	assert.InDelta(t, 2.5, cfg.Availability.Rate, 1e-9)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2, cfg.Transport.Redis.DB, "invalid integers fall back to the file value")
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := NewLoader("testdata/unknown_field.yaml", "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField), "got %v", err)
	assert.Contains(t, err.Error(), "brokr")
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	_, err := NewLoader("testdata/multi_doc.yaml", "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader("testdata/empty.yaml", "").Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Transport, cfg.Transport)
}

func TestLoadRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	_, err := NewLoader(path, "").Load()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), "").Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadValidationFailure(t *testing.T) {
	t.Setenv("NAMEWHISK_TRANSPORT", "carrier-pigeon")

	_, err := NewLoader("", "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport.kind")
}

func TestUnknownEnvKeys(t *testing.T) {
	l := NewLoader("", "")
	l.environ = func() []string {
		return []string{
			"PATH=/usr/bin",
			"NAMEWHISK_LOG_LEVEL=debug",
			"NAMEWHISK_TRANSPROT=redis",
			"NAMEWHISK_ALPHA=1",
		}
	}
	_, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"NAMEWHISK_ALPHA", "NAMEWHISK_TRANSPROT"}, l.UnknownEnvKeys())
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Transport.Redis.Password = "hunter2"
	cfg.Transport.MQTT.Password = ""

	red := cfg.Redacted()
	assert.Equal(t, "***", red.Transport.Redis.Password)
	assert.Empty(t, red.Transport.MQTT.Password)
	assert.Equal(t, "hunter2", cfg.Transport.Redis.Password)
}
