// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"encoding/json"
	"time"

	"github.com/ManuGH/namewhisk/internal/availability"
)

// ModeWhimsical selects the local candidate generator. Every other mode
// queries the remote suggestion service.
const ModeWhimsical = "whimsical"

// Invocation is the input of one session.
type Invocation struct {
	ChannelID string          `json:"channelId"`
	Options   json.RawMessage `json:"options,omitempty"`
}

// Request is the body of a REQUEST message.
type Request struct {
	Name   string `json:"name"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
	TLD    string `json:"tld"`
	Mode   string `json:"mode,omitempty"`
}

// Response is the success body published on RESPONSE.
type Response struct {
	Value []availability.Result `json:"value"`
}

// ErrorResponse is the failure body published on RESPONSE.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Reason records why a session ended. The zero value means the remote side
// ended it.
type Reason struct {
	Inactivity bool `json:"inactivity,omitempty"`
	OutOfTime  bool `json:"outOfTime,omitempty"`
}

var (
	ReasonInactivity = Reason{Inactivity: true}
	ReasonOutOfTime  = Reason{OutOfTime: true}
	ReasonRemote     = Reason{}
)

// String is the bounded label used in logs, metrics and the ledger.
func (r Reason) String() string {
	switch {
	case r.OutOfTime:
		return "out_of_time"
	case r.Inactivity:
		return "inactivity"
	default:
		return "remote"
	}
}

// EndNotice is the body published on END.
type EndNotice struct {
	ChannelID  string `json:"channelId"`
	Chrome     bool   `json:"chrome"`
	Inactivity bool   `json:"inactivity,omitempty"`
	OutOfTime  bool   `json:"outOfTime,omitempty"`
}

func newEndNotice(channelID string, r Reason) EndNotice {
	return EndNotice{
		ChannelID:  channelID,
		Chrome:     true,
		Inactivity: r.Inactivity,
		OutOfTime:  r.OutOfTime,
	}
}

// RemoteEnd is the body a client publishes on END.
type RemoteEnd struct {
	Disconnected bool `json:"disconnected,omitempty"`
}

// Summary describes a finished session.
type Summary struct {
	SessionID string
	ChannelID string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    Reason
	Requests  int
	Failures  int
	// Dropped counts requests that were queued but not handled before the
	// session ended.
	Dropped int
}
