// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store keeps a ledger of finished sessions.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRecord is returned when a record lacks its identifiers.
var ErrInvalidRecord = errors.New("store: invalid record")

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 100

// Record is one finished session.
type Record struct {
	SessionID string    `json:"sessionId"`
	ChannelID string    `json:"channelId"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Reason    string    `json:"reason"`
	Requests  int       `json:"requests"`
	Failures  int       `json:"failures"`
	Dropped   int       `json:"dropped"`
}

// Duration is the session wall time.
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

func (r Record) validate() error {
	if r.SessionID == "" || r.ChannelID == "" {
		return ErrInvalidRecord
	}
	return nil
}

// Store persists session records.
type Store interface {
	// Save inserts or replaces the record keyed by SessionID.
	Save(ctx context.Context, r Record) error
	// List returns up to limit records, most recently ended first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit*10 {
		return DefaultListLimit
	}
	return limit
}
