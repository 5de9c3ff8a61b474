// Copyright (c) 2025-2026 Lumina Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("telemetry recorder closed")

// =============================================================================
// RECORDS
// =============================================================================

// SendRecord is the outcome of one exchange.
type SendRecord struct {
	ConversationID string
	QueryChars     int
	Tokens         int
	FirstToken     time.Duration
	Duration       time.Duration

	// Outcome is the terminal stream state: completed, aborted or failed.
	Outcome string

	// Persisted is false when the exchange never reached the backend,
	// either by design (ephemeral session) or by failure.
	Persisted bool
}

// Stats aggregates recorded sends.
type Stats struct {
	Sends         int
	Completed     int
	Aborted       int
	Failed        int
	Unpersisted   int
	AvgDurationMs int64
	AvgTTFTMs     int64
	TotalTokens   int64
}

// =============================================================================
// RECORDER
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS sends (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT    NOT NULL,
	query_chars     INTEGER NOT NULL,
	tokens          INTEGER NOT NULL,
	ttft_ms         INTEGER NOT NULL,
	duration_ms     INTEGER NOT NULL,
	outcome         TEXT    NOT NULL,
	persisted       INTEGER NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sends_conversation ON sends(conversation_id);
CREATE INDEX IF NOT EXISTS idx_sends_created ON sends(created_at);
`

// Recorder writes send records to SQLite. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// NewRecorder opens (creating if needed) the telemetry database at
// dbPath. An empty path defaults to ~/.lumina/telemetry.db.
func NewRecorder(dbPath string) (*Recorder, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(homeDir, ".lumina", "telemetry.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create telemetry schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// RecordSend writes one exchange outcome.
func (r *Recorder) RecordSend(rec SendRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	_, err := r.db.Exec(
		`INSERT INTO sends
		 (conversation_id, query_chars, tokens, ttft_ms, duration_ms, outcome, persisted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ConversationID,
		rec.QueryChars,
		rec.Tokens,
		rec.FirstToken.Milliseconds(),
		rec.Duration.Milliseconds(),
		rec.Outcome,
		boolToInt(rec.Persisted),
		time.Now().UTC(),
	)
	return err
}

// Stats returns aggregates over all recorded sends.
func (r *Recorder) Stats() (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Stats{}, ErrClosed
	}

	var s Stats
	row := r.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN outcome = 'aborted'   THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN outcome = 'failed'    THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN persisted = 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(duration_ms), 0),
		        COALESCE(AVG(CASE WHEN ttft_ms > 0 THEN ttft_ms END), 0),
		        COALESCE(SUM(tokens), 0)
		 FROM sends`)
	var avgDuration, avgTTFT float64
	if err := row.Scan(&s.Sends, &s.Completed, &s.Aborted, &s.Failed,
		&s.Unpersisted, &avgDuration, &avgTTFT, &s.TotalTokens); err != nil {
		return Stats{}, err
	}
	s.AvgDurationMs = int64(avgDuration)
	s.AvgTTFTMs = int64(avgTTFT)
	return s, nil
}

// Close releases the database handle. Further calls return ErrClosed.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
