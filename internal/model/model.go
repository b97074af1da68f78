// Package model defines the canonical transcript event types shared by every
// parser, store and renderer.
package model

import (
	"encoding/json"
	"time"
)

// Kind is the discriminator of a domain event.
type Kind string

const (
	KindLog               Kind = "log"
	KindComplete          Kind = "complete"
	KindMessage           Kind = "message"
	KindThought           Kind = "thought"
	KindToolCall          Kind = "tool_call"
	KindPlan              Kind = "plan"
	KindPermissionRequest Kind = "permission_request"
	KindModeUpdate        Kind = "mode_update"
)

// Event is one entry of a session transcript. The set of implementations is
// closed: callers switch on the concrete type.
type Event interface {
	Kind() Kind
	// Time returns the ISO-8601 timestamp, or "" when the producer did not
	// supply one.
	Time() string
	isEvent()
}

// Role identifies the author of a streamed message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ParseRole accepts only the two known roles.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleUser, RoleAgent:
		return Role(value), true
	default:
		return "", false
	}
}

// ToolStatus is the lifecycle state of a tool call.
type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

// ParseToolStatus normalizes wire status values. Unknown or empty values
// mean the call is still running.
func ParseToolStatus(value string) ToolStatus {
	switch value {
	case "completed", "done":
		return ToolCompleted
	case "failed", "error":
		return ToolFailed
	default:
		return ToolRunning
	}
}

// PlanStatus is the state of a single plan entry.
type PlanStatus string

const (
	PlanPending PlanStatus = "pending"
	PlanRunning PlanStatus = "running"
	PlanDone    PlanStatus = "done"
)

// ParsePlanStatus normalizes wire status values for plan entries.
func ParsePlanStatus(value string) PlanStatus {
	switch value {
	case "done", "completed":
		return PlanDone
	case "running", "in_progress":
		return PlanRunning
	default:
		return PlanPending
	}
}

// LogEvent is the catch-all entry. It preserves the original log text.
type LogEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// CompleteEvent marks the end of a session run.
type CompleteEvent struct {
	Timestamp  string `json:"timestamp,omitempty"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
}

// MessageEvent is a streamed chat message chunk, or a merged run of chunks.
type MessageEvent struct {
	Timestamp     string `json:"timestamp,omitempty"`
	Role          Role   `json:"role"`
	Content       string `json:"content"`
	Done          bool   `json:"done"`
	ContentBlocks []any  `json:"contentBlocks,omitempty"`
	RawContent    any    `json:"rawContent,omitempty"`
}

// ThoughtEvent is a streamed reasoning chunk.
type ThoughtEvent struct {
	Timestamp     string `json:"timestamp,omitempty"`
	Content       string `json:"content"`
	Done          bool   `json:"done"`
	ContentBlocks []any  `json:"contentBlocks,omitempty"`
	RawContent    any    `json:"rawContent,omitempty"`
}

// ToolCallEvent is identified by ID and updated in place over its lifetime.
type ToolCallEvent struct {
	Timestamp  string         `json:"timestamp,omitempty"`
	ID         string         `json:"id"`
	Tool       string         `json:"tool"`
	Args       map[string]any `json:"args"`
	Status     ToolStatus     `json:"status"`
	Result     any            `json:"result"`
	RawContent any            `json:"rawContent,omitempty"`
}

// PlanEntry is one task of a plan snapshot.
type PlanEntry struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status PlanStatus `json:"status"`
}

// PlanEvent is always a full snapshot of the agent's plan.
type PlanEvent struct {
	Timestamp string      `json:"timestamp,omitempty"`
	Entries   []PlanEntry `json:"entries"`
	Done      *bool       `json:"done,omitempty"`
}

// PermissionRequestEvent asks the user to pick one of Options. Answers are
// correlated on ID outside the transcript.
type PermissionRequestEvent struct {
	Timestamp string         `json:"timestamp,omitempty"`
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	Options   []string       `json:"options"`
}

// ModeUpdateEvent replaces the session-wide mode indicator.
type ModeUpdateEvent struct {
	Timestamp string `json:"timestamp,omitempty"`
	Mode      string `json:"mode"`
}

func (LogEvent) Kind() Kind               { return KindLog }
func (CompleteEvent) Kind() Kind          { return KindComplete }
func (MessageEvent) Kind() Kind           { return KindMessage }
func (ThoughtEvent) Kind() Kind           { return KindThought }
func (ToolCallEvent) Kind() Kind          { return KindToolCall }
func (PlanEvent) Kind() Kind              { return KindPlan }
func (PermissionRequestEvent) Kind() Kind { return KindPermissionRequest }
func (ModeUpdateEvent) Kind() Kind        { return KindModeUpdate }

func (e LogEvent) Time() string               { return e.Timestamp }
func (e CompleteEvent) Time() string          { return e.Timestamp }
func (e MessageEvent) Time() string           { return e.Timestamp }
func (e ThoughtEvent) Time() string           { return e.Timestamp }
func (e ToolCallEvent) Time() string          { return e.Timestamp }
func (e PlanEvent) Time() string              { return e.Timestamp }
func (e PermissionRequestEvent) Time() string { return e.Timestamp }
func (e ModeUpdateEvent) Time() string        { return e.Timestamp }

func (LogEvent) isEvent()               {}
func (CompleteEvent) isEvent()          {}
func (MessageEvent) isEvent()           {}
func (ThoughtEvent) isEvent()           {}
func (ToolCallEvent) isEvent()          {}
func (PlanEvent) isEvent()              {}
func (PermissionRequestEvent) isEvent() {}
func (ModeUpdateEvent) isEvent()        {}

// WithTimestamp returns ev with its timestamp set to ts when ev has none.
func WithTimestamp(ev Event, ts string) Event {
	if ev == nil || ts == "" || ev.Time() != "" {
		return ev
	}
	switch e := ev.(type) {
	case LogEvent:
		e.Timestamp = ts
		return e
	case CompleteEvent:
		e.Timestamp = ts
		return e
	case MessageEvent:
		e.Timestamp = ts
		return e
	case ThoughtEvent:
		e.Timestamp = ts
		return e
	case ToolCallEvent:
		e.Timestamp = ts
		return e
	case PlanEvent:
		e.Timestamp = ts
		return e
	case PermissionRequestEvent:
		e.Timestamp = ts
		return e
	case ModeUpdateEvent:
		e.Timestamp = ts
		return e
	}
	return ev
}

// ParseTime parses an event timestamp. The zero time is returned for empty or
// unparseable values.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

// Marshal encodes ev as a JSON object tagged with a "type" field.
func Marshal(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case LogEvent:
		type body LogEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindLog, body(e)})
	case CompleteEvent:
		type body CompleteEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindComplete, body(e)})
	case MessageEvent:
		type body MessageEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindMessage, body(e)})
	case ThoughtEvent:
		type body ThoughtEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindThought, body(e)})
	case ToolCallEvent:
		type body ToolCallEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindToolCall, body(e)})
	case PlanEvent:
		type body PlanEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindPlan, body(e)})
	case PermissionRequestEvent:
		type body PermissionRequestEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindPermissionRequest, body(e)})
	case ModeUpdateEvent:
		type body ModeUpdateEvent
		return json.Marshal(struct {
			Type Kind `json:"type"`
			body
		}{KindModeUpdate, body(e)})
	default:
		return nil, errUnknownEvent
	}
}
