// Package model defines the canonical transcript event types shared by every
// parser, store and renderer.
package model

import (
	"context"
	"time"
)

// LogRecord is one persisted session log line. Message may be plain text or
// carry an embedded JSON object starting at its first '{'.
type LogRecord struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// SessionSummary holds lightweight information about a persisted session.
type SessionSummary struct {
	ID              string    `json:"id"`
	Path            string    `json:"path,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	Summary         string    `json:"summary"`
	RecordCount     int       `json:"record_count"`
	DurationSeconds int       `json:"duration_seconds"`
}

// LogSource provides access to persisted session logs. Different backends
// (JSONL directories, SQLite databases) implement it.
type LogSource interface {
	// ListSessions returns summaries for every session, newest first.
	ListSessions(ctx context.Context) ([]SessionSummary, error)

	// ResolveSession maps a session id or path to the key accepted by
	// IterateLogs.
	ResolveSession(ctx context.Context, idOrPath string) (string, error)

	// IterateLogs calls fn for every record of session whose ID is greater
	// than afterID, in ascending ID order. fn returning an error stops the
	// iteration and that error is returned.
	IterateLogs(ctx context.Context, session string, afterID int64, fn func(LogRecord) error) error

	Close() error
}
