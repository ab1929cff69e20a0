// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrMissingLauncher is returned when an App is created without a launcher.
	ErrMissingLauncher = errors.New("launcher is required")

	// ErrAtCapacity is returned when the live session limit is reached.
	ErrAtCapacity = errors.New("session limit reached")

	// ErrShuttingDown is returned for invocations after shutdown began.
	ErrShuttingDown = errors.New("daemon is shutting down")

	// ErrUnknownTransport is returned for an unsupported transport kind.
	ErrUnknownTransport = errors.New("unknown transport kind")
)
