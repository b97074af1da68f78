package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"acplog/internal/model"
	"acplog/internal/store"
)

func openTestSource(t *testing.T) *Source {
	t.Helper()
	src, err := Open(filepath.Join(t.TempDir(), "logs", "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func appendAll(t *testing.T, src *Source, session string, recs ...model.LogRecord) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		id, err := src.AppendLog(context.Background(), session, rec)
		if err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestAppendAndIterate(t *testing.T) {
	src := openTestSource(t)
	ctx := context.Background()

	ids := appendAll(t, src, "a",
		model.LogRecord{Timestamp: "2025-01-05T10:00:00Z", Message: "one"},
		model.LogRecord{Timestamp: "2025-01-05T10:00:01Z", Level: "warn", Message: "two"},
	)
	appendAll(t, src, "b", model.LogRecord{Message: "other"})
	ids = append(ids, appendAll(t, src, "a", model.LogRecord{Message: "three"})...)

	var got []model.LogRecord
	if err := src.IterateLogs(ctx, "a", 0, func(rec model.LogRecord) error {
		got = append(got, rec)
		return nil
	}); err != nil {
		t.Fatalf("IterateLogs: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records for session a, got %d", len(got))
	}
	for i, rec := range got {
		if rec.ID != ids[i] {
			t.Fatalf("record %d: id %d, want %d", i, rec.ID, ids[i])
		}
	}
	if got[0].Level != "info" || got[1].Level != "warn" || got[2].Message != "three" {
		t.Fatalf("unexpected records: %#v", got)
	}

	var after []string
	if err := src.IterateLogs(ctx, "a", ids[1], func(rec model.LogRecord) error {
		after = append(after, rec.Message)
		return nil
	}); err != nil {
		t.Fatalf("IterateLogs: %v", err)
	}
	if len(after) != 1 || after[0] != "three" {
		t.Fatalf("expected only records after cursor, got %v", after)
	}
}

func TestIterateLogsPages(t *testing.T) {
	src := openTestSource(t)
	ctx := context.Background()
	for i := 0; i < pageSize+25; i++ {
		if _, err := src.AppendLog(ctx, "big", model.LogRecord{Message: "line"}); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
	}

	var count int
	var last int64
	err := src.IterateLogs(ctx, "big", 0, func(rec model.LogRecord) error {
		if rec.ID <= last {
			t.Fatalf("ids not ascending: %d after %d", rec.ID, last)
		}
		last = rec.ID
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("IterateLogs: %v", err)
	}
	if count != pageSize+25 {
		t.Fatalf("expected %d records, got %d", pageSize+25, count)
	}
}

func TestListSessions(t *testing.T) {
	src := openTestSource(t)
	appendAll(t, src, "old",
		model.LogRecord{Timestamp: "2025-01-01T09:00:00Z", Message: `{"type":"acp_message","role":"user","content":"first task","done":true}`},
		model.LogRecord{Timestamp: "2025-01-01T09:00:30Z", Message: "done"},
	)
	appendAll(t, src, "new",
		model.LogRecord{Timestamp: "2025-01-02T09:00:00Z", Message: `{"type":"acp_message","role":"user","content":"second task","done":true}`},
	)

	summaries, err := src.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(summaries))
	}
	if summaries[0].ID != "new" || summaries[1].ID != "old" {
		t.Fatalf("expected newest first, got %s, %s", summaries[0].ID, summaries[1].ID)
	}
	if summaries[1].Summary != "first task" || summaries[1].RecordCount != 2 || summaries[1].DurationSeconds != 30 {
		t.Fatalf("unexpected summary: %#v", summaries[1])
	}
}

func TestResolveSession(t *testing.T) {
	src := openTestSource(t)
	appendAll(t, src, "known", model.LogRecord{Message: "x"})

	got, err := src.ResolveSession(context.Background(), "known")
	if err != nil || got != "known" {
		t.Fatalf("expected known session, got %q (%v)", got, err)
	}
	if _, err := src.ResolveSession(context.Background(), "unknown"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestOpenMemory(t *testing.T) {
	src, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer src.Close() //nolint:errcheck

	ctx := context.Background()
	if _, err := src.AppendLog(ctx, "m", model.LogRecord{Message: "kept"}); err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if _, err := src.ResolveSession(ctx, "m"); err != nil {
		t.Fatalf("memory database lost rows across connections: %v", err)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	src := openTestSource(t)
	if err := Migrate(src.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestRegisteredFactory(t *testing.T) {
	src, err := model.NewSource(model.SourceSQLite, filepath.Join(t.TempDir(), "f.db"))
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer src.Close() //nolint:errcheck
	if _, ok := src.(*Source); !ok {
		t.Fatalf("expected *Source, got %T", src)
	}
}
