// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ManuGH/namewhisk/internal/persistence/sqlite"
)

var schema = []string{
	`CREATE TABLE sessions (
		session_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at   INTEGER NOT NULL,
		reason     TEXT NOT NULL,
		requests   INTEGER NOT NULL DEFAULT 0,
		failures   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX sessions_ended_at ON sessions (ended_at DESC)`,
	`ALTER TABLE sessions ADD COLUMN dropped INTEGER NOT NULL DEFAULT 0`,
}

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the ledger at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, channel_id, started_at, ended_at, reason, requests, failures, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			started_at = excluded.started_at,
			ended_at   = excluded.ended_at,
			reason     = excluded.reason,
			requests   = excluded.requests,
			failures   = excluded.failures,
			dropped    = excluded.dropped`,
		r.SessionID, r.ChannelID, r.StartedAt.UnixNano(), r.EndedAt.UnixNano(),
		r.Reason, r.Requests, r.Failures, r.Dropped)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", r.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, channel_id, started_at, ended_at, reason, requests, failures, dropped
		FROM sessions
		ORDER BY ended_at DESC, session_id ASC
		LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var r Record
		var started, ended int64
		if err := rows.Scan(&r.SessionID, &r.ChannelID, &started, &ended, &r.Reason, &r.Requests, &r.Failures, &r.Dropped); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.EndedAt = time.Unix(0, ended).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
