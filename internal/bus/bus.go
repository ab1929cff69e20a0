// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus defines the publish/subscribe transport contract used by sessions
// and ships an in-process broker implementation.
//
// Concrete network transports live under internal/infra/bus.
package bus

import (
	"context"
	"errors"
	"strings"
)

// QoS selects the delivery guarantee of a publish.
type QoS byte

const (
	// AtMostOnce is best-effort: Publish may return before the broker has the message.
	AtMostOnce QoS = 0
	// AtLeastOnce waits for the broker acknowledgement before Publish returns.
	AtLeastOnce QoS = 1
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at_most_once"
	case AtLeastOnce:
		return "at_least_once"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned by operations on a closed connection or subscription.
	ErrClosed = errors.New("bus: connection closed")
	// ErrInvalidTopic is returned for empty topic names.
	ErrInvalidTopic = errors.New("bus: invalid topic")
)

// Message is one inbound publication.
type Message struct {
	Topic   string
	Payload []byte
}

// Subscription delivers messages for a single topic until closed.
// Closing a subscription unsubscribes it; C is closed afterwards.
type Subscription interface {
	Topic() string
	C() <-chan Message
	Close() error
}

// EventKind classifies connection-level events.
type EventKind string

const (
	EventError   EventKind = "error"
	EventOffline EventKind = "offline"
	EventOnline  EventKind = "online"
)

// Event is a connection-level notification. Events are advisory: a transport
// may drop them when nobody is listening.
type Event struct {
	Kind EventKind
	Err  error
}

// Conn is one persistent broker connection.
type Conn interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Publish(ctx context.Context, topic string, payload []byte, qos QoS) error
	// Events reports transient connection problems. The channel is never closed
	// before Close returns.
	Events() <-chan Event
	Close() error
}

// Dialer opens broker connections.
type Dialer interface {
	Dial(ctx context.Context, clientID string) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, clientID string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, clientID string) (Conn, error) {
	return f(ctx, clientID)
}

// TopicKind returns the last path segment of a topic, which is the bounded
// label used for metrics (topic names embed unbounded channel IDs).
func TopicKind(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
