// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSessionConfig writes a minimal valid config file.
func writeSessionConfig(t *testing.T, path string, inactivity time.Duration, maxSessions int) {
	t.Helper()
	data := fmt.Sprintf("session:\n  inactivityTimeout: %s\napi:\n  maxSessions: %d\n", inactivity, maxSessions)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func newHolder(t *testing.T, path string) *ConfigHolder {
	t.Helper()
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	return NewConfigHolder(initial, loader)
}

func TestConfigHolderGetReturnsCopy(t *testing.T) {
	holder := NewConfigHolder(Default(), nil)

	got := holder.Get()
	got.API.MaxSessions = 1
	assert.Equal(t, Default().API.MaxSessions, holder.Get().API.MaxSessions)
}

func TestConfigHolderReloadWithoutLoader(t *testing.T) {
	holder := NewConfigHolder(Default(), nil)
	assert.ErrorIs(t, holder.Reload(context.Background()), ErrNoLoader)
	require.NoError(t, holder.StartWatcher(context.Background()))
}

func TestConfigHolderReloadSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSessionConfig(t, path, 30*time.Second, 4)
	holder := newHolder(t, path)

	updates := make(chan AppConfig, 1)
	holder.RegisterListener(updates)

	writeSessionConfig(t, path, 90*time.Second, 2)
	require.NoError(t, holder.Reload(context.Background()))

	got := holder.Get()
	assert.Equal(t, 90*time.Second, got.Session.InactivityTimeout)
	assert.Equal(t, 2, got.API.MaxSessions)

	select {
	case cfg := <-updates:
		assert.Equal(t, 2, cfg.API.MaxSessions)
	default:
		t.Fatal("listener not notified")
	}
}

func TestConfigHolderReloadKeepsOldOnInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSessionConfig(t, path, 30*time.Second, 4)
	holder := newHolder(t, path)

	writeSessionConfig(t, path, 30*time.Second, 0)
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, 4, holder.Get().API.MaxSessions)

	require.NoError(t, os.WriteFile(path, []byte("session:\n  bogus: 1\n"), 0o600))
	assert.ErrorIs(t, holder.Reload(context.Background()), ErrUnknownConfigField)
	assert.Equal(t, 4, holder.Get().API.MaxSessions)
}

func TestConfigHolderWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeSessionConfig(t, path, 30*time.Second, 4)
	holder := newHolder(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, holder.StartWatcher(ctx))
	defer holder.Stop()

	writeSessionConfig(t, path, 30*time.Second, 7)
	assert.Eventually(t, func() bool {
		return holder.Get().API.MaxSessions == 7
	}, 5*time.Second, 50*time.Millisecond)
}
