// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldChannelID     = "channel_id"
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldClientID      = "client_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldReason    = "reason"

	// Transport fields
	FieldTopic     = "topic"
	FieldQoS       = "qos"
	FieldTransport = "transport"

	// Domain fields
	FieldName       = "name"
	FieldTLD        = "tld"
	FieldMode       = "mode"
	FieldCandidates = "candidates"
	FieldAvailable  = "available"
)
