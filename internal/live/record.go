package live

import (
	"context"
	"fmt"
	"time"

	"acplog/internal/model"
)

// Appender persists log records; the SQLite source implements it.
type Appender interface {
	AppendLog(ctx context.Context, session string, rec model.LogRecord) (int64, error)
}

// Recorder wraps next so that every raw frame is stored as a log record of
// session before being handed on. An event without a timestamp of its own
// gets the record's, so replaying the stored records yields the same events
// next saw.
func Recorder(ctx context.Context, app Appender, session string, next func(Frame) error) func(Frame) error {
	return func(f Frame) error {
		ts := time.Now().UTC().Format(time.RFC3339Nano)
		rec := model.LogRecord{
			Timestamp: ts,
			Level:     "info",
			Message:   string(f.Raw),
		}
		if _, err := app.AppendLog(ctx, session, rec); err != nil {
			return fmt.Errorf("record frame: %w", err)
		}
		if f.OK {
			f.Event = model.WithTimestamp(f.Event, ts)
		}
		return next(f)
	}
}
