package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"acplog/internal/model"
)

// IterateLogFile walks a session log file and calls fn for every record.
// Each line is either a JSON log record ({id, timestamp, level, message}) or
// plain text; plain lines become info records numbered by line. Lines whose
// ID is not greater than afterID are skipped.
func IterateLogFile(path string, afterID int64, fn func(model.LogRecord) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return IterateLogs(file, afterID, fn)
}

// IterateLogs is IterateLogFile over an arbitrary reader.
func IterateLogs(r io.Reader, afterID int64, fn func(model.LogRecord) error) error {
	scanner := newScanner(r)
	var lineNo int64
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec := ParseLogLine(line, lineNo)
		if rec.ID <= afterID {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan session log: %w", err)
	}
	return nil
}

type rawRecord struct {
	ID        int64   `json:"id"`
	Timestamp string  `json:"timestamp"`
	Level     string  `json:"level"`
	Message   *string `json:"message"`
}

// ParseLogLine decodes a single persisted line. lineNo is used as the record
// ID when the line does not carry one.
func ParseLogLine(line string, lineNo int64) model.LogRecord {
	var raw rawRecord
	if err := json.Unmarshal([]byte(line), &raw); err == nil && raw.Message != nil {
		rec := model.LogRecord{
			ID:        raw.ID,
			Timestamp: raw.Timestamp,
			Level:     raw.Level,
			Message:   *raw.Message,
		}
		if rec.ID == 0 {
			rec.ID = lineNo
		}
		if rec.Level == "" {
			rec.Level = "info"
		}
		return rec
	}

	// Plain text, optionally prefixed with an RFC3339 timestamp.
	rec := model.LogRecord{ID: lineNo, Level: "info", Message: line}
	if head, rest, ok := strings.Cut(line, " "); ok {
		if _, err := time.Parse(time.RFC3339Nano, head); err == nil {
			rec.Timestamp = head
			rec.Message = rest
		}
	}
	return rec
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Allow large payloads such as tool results.
	const maxCapacity = 8 * 1024 * 1024
	buf := make([]byte, 1024)
	scanner.Buffer(buf, maxCapacity)
	return scanner
}
