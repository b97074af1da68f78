// Package parser classifies live stream frames and persisted log lines into
// domain events. Every function here is total: malformed input degrades to a
// less specific interpretation instead of returning an error.
package parser

import (
	"encoding/json"
	"strings"

	"acplog/internal/acp"
	"acplog/internal/model"
)

// Legacy flat event types that are not part of the ACP dialect.
const (
	TypeLog      = "log"
	TypeComplete = "complete"
)

// maxEmbedDepth bounds how many log envelopes may be nested inside each other.
const maxEmbedDepth = 4

// ParseFrame decodes one live stream frame and classifies it.
func ParseFrame(data []byte) (model.Event, bool) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, false
	}
	return ParsePayload(payload)
}

// ParsePayload classifies a decoded JSON value. It reports false for shapes it
// does not recognize.
func ParsePayload(payload any) (model.Event, bool) {
	return parsePayload(payload, "", 0)
}

func parsePayload(payload any, fallbackTS string, depth int) (model.Event, bool) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, false
	}

	ts := stringField(obj, "timestamp")
	if ts == "" {
		ts = fallbackTS
	}

	if method, ok := obj["__acp_method"].(string); ok {
		if ev, ok := acp.MapRaw(method, obj["params"], ts); ok {
			return ev, true
		}
	}

	kind := stringField(obj, "type")
	if acp.IsDirectType(kind) {
		ev, ok := acp.FromDirect(obj)
		if !ok {
			return nil, false
		}
		return model.WithTimestamp(ev, ts), true
	}

	switch kind {
	case TypeLog:
		message := stringField(obj, "message")
		if depth < maxEmbedDepth {
			if inner, ok := ExtractEmbeddedJSON(message); ok {
				if ev, ok := parsePayload(inner, ts, depth+1); ok {
					return ev, true
				}
			}
		}
		level := stringField(obj, "level")
		if level == "" {
			level = "info"
		}
		return model.LogEvent{Timestamp: ts, Level: level, Message: message}, true
	case TypeComplete:
		return model.CompleteEvent{
			Timestamp:  ts,
			Status:     stringField(obj, "status"),
			DurationMS: acp.Int64(obj["duration_ms"]),
		}, true
	}

	return nil, false
}

// ExtractEmbeddedJSON decodes the JSON object that starts at the first '{' of
// message. Trailing text after the object is tolerated.
func ExtractEmbeddedJSON(message string) (map[string]any, bool) {
	start := strings.IndexByte(message, '{')
	if start < 0 {
		return nil, false
	}
	candidate := message[start:]
	if obj, ok := decodeObject(candidate); ok {
		return obj, true
	}

	end := strings.LastIndexByte(candidate, '}')
	if end <= 0 {
		return nil, false
	}
	return decodeObject(candidate[:end+1])
}

// ParseSessionLog converts a persisted log record into a domain event. It
// never fails: records that do not embed a recognized payload become log
// events carrying the original message verbatim.
func ParseSessionLog(rec model.LogRecord) model.Event {
	if inner, ok := ExtractEmbeddedJSON(rec.Message); ok {
		if ev, ok := parsePayload(inner, rec.Timestamp, 0); ok {
			return model.WithTimestamp(ev, rec.Timestamp)
		}
	}
	return model.LogEvent{Timestamp: rec.Timestamp, Level: rec.Level, Message: rec.Message}
}

func decodeObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}
