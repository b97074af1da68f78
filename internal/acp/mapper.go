// Package acp maps Agent Client Protocol notifications and the legacy flat
// event dialect onto the domain events in package model.
package acp

import (
	"strconv"

	"acplog/internal/model"
)

// Methods observed in "__acp_method" envelopes.
const (
	MethodRequestPermission = "session/request_permission"
	MethodSessionUpdate     = "session/update"
)

// UpdateType captures the "sessionUpdate" discriminator of session/update.
type UpdateType string

const (
	UpdateAgentMessageChunk UpdateType = "agent_message_chunk"
	UpdateUserMessageChunk  UpdateType = "user_message_chunk"
	UpdateAgentThoughtChunk UpdateType = "agent_thought_chunk"
	UpdateToolCall          UpdateType = "tool_call"
	UpdateToolCallUpdate    UpdateType = "tool_call_update"
	UpdatePlan              UpdateType = "plan"
	UpdateCurrentMode       UpdateType = "current_mode_update"
)

// MapRaw converts one ACP method call into a domain event. It reports false
// for unknown methods, unknown update types and payloads missing required
// fields. It never panics on malformed input.
func MapRaw(method string, params any, fallbackTimestamp string) (model.Event, bool) {
	rec, ok := asRecord(params)
	if !ok {
		return nil, false
	}

	switch method {
	case MethodRequestPermission:
		return permissionRequest(rec, timestampOf(rec, fallbackTimestamp))
	case MethodSessionUpdate:
		update := rec
		if inner, ok := asRecord(rec["update"]); ok {
			update = inner
		}
		ts := timestampOf(update, timestampOf(rec, fallbackTimestamp))
		return mapUpdate(update, ts)
	default:
		return nil, false
	}
}

func mapUpdate(update map[string]any, ts string) (model.Event, bool) {
	discriminator, _ := coalesce(update, "sessionUpdate", "type")
	kind, _ := asString(discriminator)

	switch UpdateType(kind) {
	case UpdateAgentMessageChunk:
		return newMessage(update, model.RoleAgent, ts), true
	case UpdateUserMessageChunk:
		return newMessage(update, model.RoleUser, ts), true
	case UpdateAgentThoughtChunk:
		return newThought(update, ts), true
	case UpdateToolCall, UpdateToolCallUpdate:
		return newToolCall(update, ts)
	case UpdatePlan:
		return newPlan(update, ts), true
	case UpdateCurrentMode:
		mode, ok := asString(update["mode"])
		if !ok {
			mode, ok = asString(update["currentModeId"])
		}
		if !ok {
			return nil, false
		}
		return model.ModeUpdateEvent{Timestamp: ts, Mode: mode}, true
	default:
		return nil, false
	}
}

func timestampOf(rec map[string]any, fallback string) string {
	if ts, ok := asString(rec["timestamp"]); ok && ts != "" {
		return ts
	}
	return fallback
}

func permissionRequest(params map[string]any, ts string) (model.Event, bool) {
	id, ok := asID(params["id"])
	if !ok {
		return nil, false
	}

	tool, _ := asString(params["tool"])
	argsValue := params["args"]
	if call, ok := asRecord(params["toolCall"]); ok {
		if tool == "" {
			tool = stringOr(call["title"], "")
		}
		if argsValue == nil {
			argsValue = call["rawInput"]
		}
	}

	var options []string
	if items, ok := params["options"].([]any); ok {
		for _, item := range items {
			if s, ok := asString(item); ok {
				options = append(options, s)
			}
		}
	}
	if options == nil {
		options = []string{}
	}

	return model.PermissionRequestEvent{
		Timestamp: ts,
		ID:        id,
		Tool:      tool,
		Args:      asArgs(argsValue),
		Options:   options,
	}, true
}

func newMessage(update map[string]any, role model.Role, ts string) model.MessageEvent {
	raw, _ := coalesce(update, "content", "text")
	return model.MessageEvent{
		Timestamp:     ts,
		Role:          role,
		Content:       Flatten(raw),
		Done:          asBool(update["done"]),
		ContentBlocks: contentBlocks(raw),
		RawContent:    raw,
	}
}

func newThought(update map[string]any, ts string) model.ThoughtEvent {
	raw, _ := coalesce(update, "content", "text")
	return model.ThoughtEvent{
		Timestamp:     ts,
		Content:       Flatten(raw),
		Done:          asBool(update["done"]),
		ContentBlocks: contentBlocks(raw),
		RawContent:    raw,
	}
}

func contentBlocks(raw any) []any {
	if blocks, ok := raw.([]any); ok {
		return blocks
	}
	return nil
}

func newToolCall(update map[string]any, ts string) (model.Event, bool) {
	idValue, _ := coalesce(update, "toolCallId", "id")
	id, ok := asID(idValue)
	if !ok {
		return nil, false
	}

	toolValue, _ := coalesce(update, "title", "tool")
	argsValue, _ := coalesce(update, "args", "rawInput")
	status, _ := asString(update["status"])
	raw := update["content"]

	return model.ToolCallEvent{
		Timestamp:  ts,
		ID:         id,
		Tool:       stringOr(toolValue, ""),
		Args:       asArgs(argsValue),
		Status:     model.ParseToolStatus(status),
		Result:     toolResult(update),
		RawContent: raw,
	}, true
}

// toolResult picks the most specific result representation available: an
// explicit result, the first content/result/text field of a content array
// entry, the content object's content/text field, or the raw content.
func toolResult(update map[string]any) any {
	if result, ok := coalesce(update, "result"); ok {
		return result
	}
	raw, ok := coalesce(update, "content")
	if !ok {
		return nil
	}
	if items, ok := raw.([]any); ok {
		for _, item := range items {
			entry, ok := asRecord(item)
			if !ok {
				continue
			}
			if v, ok := coalesce(entry, "content", "result", "text"); ok {
				return v
			}
		}
	}
	if obj, ok := asRecord(raw); ok {
		if v, ok := coalesce(obj, "content", "text"); ok {
			return v
		}
	}
	return raw
}

func newPlan(update map[string]any, ts string) model.PlanEvent {
	items, _ := update["entries"].([]any)
	entries := make([]model.PlanEntry, 0, len(items))
	for idx, item := range items {
		entries = append(entries, planEntry(idx, item))
	}

	plan := model.PlanEvent{Timestamp: ts, Entries: entries}
	if done, ok := update["done"].(bool); ok {
		plan.Done = &done
	}
	return plan
}

func planEntry(idx int, item any) model.PlanEntry {
	fallbackID := strconv.Itoa(idx)
	rec, ok := asRecord(item)
	if !ok {
		return model.PlanEntry{ID: fallbackID, Status: model.PlanPending}
	}

	id, ok := asID(rec["id"])
	if !ok {
		id = fallbackID
	}
	titleValue, _ := coalesce(rec, "title", "content")
	status, _ := asString(rec["status"])
	return model.PlanEntry{
		ID:     id,
		Title:  stringOr(titleValue, ""),
		Status: model.ParsePlanStatus(status),
	}
}
