// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestConfigureAttachesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "namewhisk-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("session")
	l.Debug().Str(FieldEvent, "session.test").Msg("configured")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "namewhisk-test" {
		t.Errorf("expected service=namewhisk-test, got %v", entry["service"])
	}
	if entry["version"] != "v0.0.1" {
		t.Errorf("expected version=v0.0.1, got %v", entry["version"])
	}
	if entry[FieldComponent] != "session" {
		t.Errorf("expected component=session, got %v", entry[FieldComponent])
	}
	if entry[FieldEvent] != "session.test" {
		t.Errorf("expected event=session.test, got %v", entry[FieldEvent])
	}
}

func TestConfigureInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "chatty", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
	L().Debug().Msg("suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug line should be suppressed at info level, got %q", buf.String())
	}
}

func TestDeriveAddsFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Derive(func(c *zerolog.Context) {
		*c = c.Str(FieldChannelID, "abc")
	})
	l.Info().Msg("derived")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line: %v", err)
	}
	if entry[FieldChannelID] != "abc" {
		t.Errorf("expected channel_id=abc, got %v", entry[FieldChannelID])
	}
}
