package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"acplog/internal/model"
	"acplog/internal/store"
)

// pageSize bounds how many rows are buffered per query while iterating.
const pageSize = 500

func init() {
	model.RegisterSQLiteSource(func(location string) (model.LogSource, error) {
		return Open(location)
	})
}

// Source reads and writes session logs in a SQLite database.
type Source struct {
	db *sql.DB
}

// New wraps an already migrated database.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Open opens the database at path and wraps it.
func Open(path string) (*Source, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// AppendLog stores rec for session and returns the assigned record id. The
// record's own ID is ignored.
func (s *Source) AppendLog(ctx context.Context, session string, rec model.LogRecord) (int64, error) {
	level := rec.Level
	if level == "" {
		level = "info"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO session_logs (session_id, timestamp, level, message) VALUES (?, ?, ?, ?)`,
		session, rec.Timestamp, level, rec.Message)
	if err != nil {
		return 0, fmt.Errorf("insert session log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert session log: %w", err)
	}
	return id, nil
}

// ListSessions summarizes every session in the table, newest first.
func (s *Source) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM session_logs GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	_ = rows.Close()

	out := make([]model.SessionSummary, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		summarizer := store.NewSummarizer(ids[i], "")
		err := s.IterateLogs(ctx, ids[i], 0, func(rec model.LogRecord) error {
			summarizer.Add(rec)
			return nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, summarizer.Summary())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// ResolveSession checks that the session has at least one record.
func (s *Source) ResolveSession(ctx context.Context, idOrPath string) (string, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM session_logs WHERE session_id = ? LIMIT 1`, idOrPath).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", store.ErrSessionNotFound, idOrPath)
	}
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	return idOrPath, nil
}

// IterateLogs pages through the session's records in id order. Rows are
// read a page at a time so fn may use the database itself.
func (s *Source) IterateLogs(ctx context.Context, session string, afterID int64, fn func(model.LogRecord) error) error {
	cursor := afterID
	for {
		page, err := s.page(ctx, session, cursor)
		if err != nil {
			return err
		}
		for _, rec := range page {
			if err := fn(rec); err != nil {
				return err
			}
			cursor = rec.ID
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

func (s *Source) page(ctx context.Context, session string, afterID int64) ([]model.LogRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp, level, message FROM session_logs WHERE session_id = ? AND id > ? ORDER BY id LIMIT ?`,
		session, afterID, pageSize)
	if err != nil {
		return nil, fmt.Errorf("query session logs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := make([]model.LogRecord, 0, pageSize)
	for rows.Next() {
		var rec model.LogRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Level, &rec.Message); err != nil {
			return nil, fmt.Errorf("scan session log: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session logs: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *Source) Close() error {
	return s.db.Close()
}
