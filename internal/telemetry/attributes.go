// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by namewhisk spans.
const (
	SessionIDKey = "namewhisk.session_id"
	ChannelIDKey = "namewhisk.channel_id"

	RequestModeKey    = "namewhisk.request.mode"
	RequestTLDKey     = "namewhisk.request.tld"
	RequestLimitKey   = "namewhisk.request.limit"
	RequestOffsetKey  = "namewhisk.request.offset"
	CandidateCountKey = "namewhisk.candidates"
	AvailableCountKey = "namewhisk.available"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes identifies the session a span belongs to.
func SessionAttributes(sessionID, channelID string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if channelID != "" {
		attrs = append(attrs, attribute.String(ChannelIDKey, channelID))
	}
	return attrs
}

// RequestAttributes describes a parsed name request.
func RequestAttributes(mode, tld string, limit, offset int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RequestModeKey, mode),
		attribute.String(RequestTLDKey, tld),
		attribute.Int(RequestLimitKey, limit),
		attribute.Int(RequestOffsetKey, offset),
	}
}

// ResultAttributes records the size of the fan-out and of the answer.
func ResultAttributes(candidates, available int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(CandidateCountKey, candidates),
		attribute.Int(AvailableCountKey, available),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
