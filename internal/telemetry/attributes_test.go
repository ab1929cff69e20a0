// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSessionAttributes(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		channelID string
		wantLen   int
	}{
		{name: "all fields", sessionID: "s1", channelID: "c1", wantLen: 2},
		{name: "only channel", channelID: "c1", wantLen: 1},
		{name: "empty fields", wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := SessionAttributes(tt.sessionID, tt.channelID)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			if tt.channelID != "" {
				verifyAttribute(t, attrs, ChannelIDKey, tt.channelID)
			}
		})
	}
}

func TestRequestAttributes(t *testing.T) {
	attrs := RequestAttributes("whimsical", "com", 20, 5)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, RequestModeKey, "whimsical")
	verifyAttribute(t, attrs, RequestTLDKey, "com")
	verifyIntAttribute(t, attrs, RequestLimitKey, 20)
	verifyIntAttribute(t, attrs, RequestOffsetKey, 5)
}

func TestResultAttributes(t *testing.T) {
	attrs := ResultAttributes(12, 3)
	verifyIntAttribute(t, attrs, CandidateCountKey, 12)
	verifyIntAttribute(t, attrs, AvailableCountKey, 3)
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "availability")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if string(attr.Key) == ErrorKey && !attr.Value.AsBool() {
			t.Error("Expected error=true")
		}
	}
	verifyAttribute(t, attrs, ErrorTypeKey, "availability")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if got := attr.Value.AsString(); got != want {
				t.Errorf("Attribute %s: expected %q, got %q", key, want, got)
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if got := attr.Value.AsInt64(); got != int64(want) {
				t.Errorf("Attribute %s: expected %d, got %d", key, want, got)
			}
			return
		}
	}
	t.Errorf("Attribute %s not found", key)
}
