// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "errors"

var (
	// ErrTransportUnavailable wraps failures to open or subscribe the
	// transport. No session exists when Run returns it.
	ErrTransportUnavailable = errors.New("session: transport unavailable")
	// ErrAlreadyStarted is returned by a second Run call.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrInvalidInvocation is returned for an empty channel ID.
	ErrInvalidInvocation = errors.New("session: invalid invocation")
	// ErrSessionEnding is returned to publishes attempted after termination
	// began.
	ErrSessionEnding = errors.New("session: ending")
	// ErrInvalidRequest wraps request body parse and validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)
