// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus holds helpers shared by the network transport adapters.
package bus

import (
	"sync"

	corebus "github.com/ManuGH/namewhisk/internal/bus"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

// EventSink is a drop-on-full event channel that is safe to emit to from
// client library callbacks after the connection has been closed.
type EventSink struct {
	transport string

	mu     sync.Mutex
	ch     chan corebus.Event
	closed bool
}

// NewEventSink creates a sink with the given buffer size.
func NewEventSink(transport string, size int) *EventSink {
	if size <= 0 {
		size = 16
	}
	return &EventSink{transport: transport, ch: make(chan corebus.Event, size)}
}

// C exposes the receive side.
func (s *EventSink) C() <-chan corebus.Event {
	return s.ch
}

// Emit records the event in metrics and forwards it if there is room.
func (s *EventSink) Emit(ev corebus.Event) {
	metrics.IncTransportEvent(s.transport, string(ev.Kind))
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// Close closes the channel. Later emits are discarded.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
