package parser

import (
	"path/filepath"
	"testing"

	"acplog/internal/model"
)

func fixturePath(parts ...string) string {
	elems := append([]string{"..", "..", "testdata", "sessions"}, parts...)
	return filepath.Join(elems...)
}

func TestParseFrameACPEnvelope(t *testing.T) {
	frame := `{"__acp_method":"session/update","params":{"update":{"sessionUpdate":"agent_message_chunk","content":{"type":"text","text":"Hel"}}},"timestamp":"2025-01-05T10:00:00Z"}`

	ev, ok := ParseFrame([]byte(frame))
	if !ok {
		t.Fatal("expected envelope to classify")
	}
	msg, ok := ev.(model.MessageEvent)
	if !ok {
		t.Fatalf("expected MessageEvent, got %T", ev)
	}
	if msg.Content != "Hel" || msg.Timestamp != "2025-01-05T10:00:00Z" {
		t.Fatalf("unexpected message: %#v", msg)
	}
}

func TestParseFrameDirectShapes(t *testing.T) {
	cases := []struct {
		frame string
		kind  model.Kind
	}{
		{`{"type":"acp_message","role":"user","content":"hi"}`, model.KindMessage},
		{`{"type":"acp_thought","content":"hmm"}`, model.KindThought},
		{`{"type":"acp_tool_call","id":"t1","tool":"bash"}`, model.KindToolCall},
		{`{"type":"acp_plan","entries":[{"id":"a","title":"x","status":"done"}]}`, model.KindPlan},
		{`{"type":"log","level":"warn","message":"disk almost full"}`, model.KindLog},
		{`{"type":"complete","status":"success","duration_ms":1500}`, model.KindComplete},
	}

	for _, tc := range cases {
		ev, ok := ParseFrame([]byte(tc.frame))
		if !ok {
			t.Fatalf("expected %s to classify", tc.frame)
		}
		if ev.Kind() != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s", tc.frame, tc.kind, ev.Kind())
		}
	}
}

func TestParseFrameRejects(t *testing.T) {
	frames := []string{
		`not json`,
		`[1,2,3]`,
		`"text"`,
		`{"type":"unknown"}`,
		`{"type":"acp_message","role":"system","content":"x"}`,
		`{"__acp_method":"session/unknown_method","params":{}}`,
	}
	for _, frame := range frames {
		if ev, ok := ParseFrame([]byte(frame)); ok {
			t.Fatalf("expected %q to be rejected, got %#v", frame, ev)
		}
	}
}

func TestParsePayloadComplete(t *testing.T) {
	ev, ok := ParseFrame([]byte(`{"type":"complete","status":"failed","duration_ms":1234.6,"timestamp":"2025-01-05T10:00:00Z"}`))
	if !ok {
		t.Fatal("expected complete to classify")
	}
	done := ev.(model.CompleteEvent)
	if done.Status != "failed" || done.DurationMS != 1235 || done.Timestamp != "2025-01-05T10:00:00Z" {
		t.Fatalf("unexpected complete event: %#v", done)
	}

	for _, duration := range []string{"1e30", "-1e30", "9223372036854775807", `"soon"`} {
		ev := ParseSessionLog(model.LogRecord{Message: "\xff\xfe {\"type\":\"complete\",\"status\":\"ok\",\"duration_ms\":" + duration + "}"})
		done, ok := ev.(model.CompleteEvent)
		if !ok {
			t.Fatalf("duration %s: expected complete event, got %T", duration, ev)
		}
		if done.Status != "ok" || done.DurationMS != 0 {
			t.Fatalf("duration %s: out-of-range value should yield 0, got %#v", duration, done)
		}
	}
}

func TestParsePayloadLogWithEmbeddedEvent(t *testing.T) {
	frame := `{"type":"log","timestamp":"2025-01-05T10:00:00Z","message":"stdout: {\"type\":\"acp_tool_call\",\"id\":\"t9\",\"tool\":\"grep\",\"status\":\"running\"}"}`

	ev, ok := ParseFrame([]byte(frame))
	if !ok {
		t.Fatal("expected log frame to classify")
	}
	call, ok := ev.(model.ToolCallEvent)
	if !ok {
		t.Fatalf("expected embedded tool call to win, got %T", ev)
	}
	if call.ID != "t9" || call.Timestamp != "2025-01-05T10:00:00Z" {
		t.Fatalf("expected outer timestamp as fallback: %#v", call)
	}
}

func TestParsePayloadLogWithUnrecognizedEmbeddedJSON(t *testing.T) {
	frame := `{"type":"log","message":"metrics {\"cpu\":0.5}"}`

	ev, ok := ParseFrame([]byte(frame))
	if !ok {
		t.Fatal("expected log frame to classify")
	}
	logEv, ok := ev.(model.LogEvent)
	if !ok {
		t.Fatalf("expected LogEvent, got %T", ev)
	}
	if logEv.Message != `metrics {"cpu":0.5}` || logEv.Level != "info" {
		t.Fatalf("unexpected log event: %#v", logEv)
	}
}

func TestParsePayloadACPFallsThroughToDirect(t *testing.T) {
	payload := map[string]any{
		"__acp_method": "session/unknown_method",
		"type":         "acp_thought",
		"content":      "still a thought",
	}
	ev, ok := ParsePayload(payload)
	if !ok || ev.Kind() != model.KindThought {
		t.Fatalf("expected direct shape after unmapped method, got %#v", ev)
	}
}

func TestExtractEmbeddedJSON(t *testing.T) {
	obj, ok := ExtractEmbeddedJSON(`[pid 12] {"a":1} trailing words`)
	if !ok || obj["a"] != 1.0 {
		t.Fatalf("expected object with trailing text to decode, got %#v", obj)
	}

	if _, ok := ExtractEmbeddedJSON("no braces at all"); ok {
		t.Fatal("expected no JSON")
	}
	if _, ok := ExtractEmbeddedJSON("broken {json"); ok {
		t.Fatal("expected broken JSON to be rejected")
	}
}

func TestParseSessionLogFallback(t *testing.T) {
	rec := model.LogRecord{
		ID:        7,
		Timestamp: "2025-01-05T10:00:00Z",
		Level:     "warn",
		Message:   `stdout: {"__acp_method":"session/unknown_method","params":{}}`,
	}

	ev := ParseSessionLog(rec)
	logEv, ok := ev.(model.LogEvent)
	if !ok {
		t.Fatalf("expected LogEvent fallback, got %T", ev)
	}
	if logEv.Message != rec.Message || logEv.Level != "warn" || logEv.Timestamp != rec.Timestamp {
		t.Fatalf("fallback should preserve the record verbatim: %#v", logEv)
	}
}

func TestParseSessionLogFillsTimestamp(t *testing.T) {
	rec := model.LogRecord{
		ID:        1,
		Timestamp: "2025-01-05T10:00:00Z",
		Level:     "info",
		Message:   `{"type":"acp_message","role":"agent","content":"hi"}`,
	}

	ev := ParseSessionLog(rec)
	if ev.Kind() != model.KindMessage || ev.Time() != rec.Timestamp {
		t.Fatalf("expected message with record timestamp, got %#v", ev)
	}
}

func TestIterateLogFile(t *testing.T) {
	var records []model.LogRecord
	err := IterateLogFile(fixturePath("sample-session.jsonl"), 0, func(rec model.LogRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateLogFile returned error: %v", err)
	}

	if len(records) != 14 {
		t.Fatalf("expected 14 records, got %d", len(records))
	}
	if records[0].Message != "session started pid=4242" {
		t.Fatalf("unexpected first record: %#v", records[0])
	}
	if records[11].Level != "warn" {
		t.Fatalf("expected warn level on record 12, got %q", records[11].Level)
	}
}

func TestIterateLogFileAfterID(t *testing.T) {
	var ids []int64
	err := IterateLogFile(fixturePath("sample-session.jsonl"), 12, func(rec model.LogRecord) error {
		ids = append(ids, rec.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateLogFile returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 13 || ids[1] != 14 {
		t.Fatalf("expected records 13 and 14, got %v", ids)
	}
}

func TestIterateLogFilePlainText(t *testing.T) {
	var records []model.LogRecord
	err := IterateLogFile(fixturePath("plain-session.jsonl"), 0, func(rec model.LogRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("IterateLogFile returned error: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected 4 records (blank line skipped), got %d", len(records))
	}
	if records[0].ID != 1 || records[0].Timestamp != "2025-02-01T08:00:00Z" || records[0].Message != "booting agent" {
		t.Fatalf("unexpected first record: %#v", records[0])
	}
	if records[2].ID != 4 || records[2].Timestamp != "" || records[2].Message != "no timestamp here" {
		t.Fatalf("unexpected untimestamped record: %#v", records[2])
	}

	ev := ParseSessionLog(records[1])
	if msg, ok := ev.(model.MessageEvent); !ok || msg.Content != "Hello there" || msg.Role != model.RoleUser {
		t.Fatalf("expected embedded user message, got %#v", ev)
	}
	if ev := ParseSessionLog(records[3]); ev.Kind() != model.KindLog {
		t.Fatalf("expected unknown method to fall back to log, got %#v", ev)
	}
}

func TestIterateLogFileMissing(t *testing.T) {
	err := IterateLogFile(fixturePath("does-not-exist.jsonl"), 0, func(model.LogRecord) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
