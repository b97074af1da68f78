// Package transcript folds domain events into an ordered session transcript
// and answers read-only queries over it.
package transcript

import (
	"slices"

	"acplog/internal/model"
)

// Append folds next into events and returns the resulting transcript. The
// input slice is never modified.
//
// Streaming message and thought chunks extend an open tail of the same shape,
// tool calls are upserted by id anywhere in the transcript, plan snapshots
// replace the most recent plan, and everything else is appended.
func Append(events []model.Event, next model.Event) []model.Event {
	if next == nil {
		return slices.Clone(events)
	}

	switch ev := next.(type) {
	case model.MessageEvent:
		if n := len(events); n > 0 {
			if last, ok := events[n-1].(model.MessageEvent); ok && !last.Done && last.Role == ev.Role {
				out := slices.Clone(events)
				out[n-1] = mergeMessage(last, ev)
				return out
			}
		}
	case model.ThoughtEvent:
		if n := len(events); n > 0 {
			if last, ok := events[n-1].(model.ThoughtEvent); ok && !last.Done {
				out := slices.Clone(events)
				out[n-1] = mergeThought(last, ev)
				return out
			}
		}
	case model.ToolCallEvent:
		for i, existing := range events {
			if call, ok := existing.(model.ToolCallEvent); ok && call.ID == ev.ID {
				out := slices.Clone(events)
				out[i] = mergeToolCall(call, ev)
				return out
			}
		}
	case model.PlanEvent:
		for i := len(events) - 1; i >= 0; i-- {
			if _, ok := events[i].(model.PlanEvent); ok {
				out := slices.Clone(events)
				out[i] = ev
				return out
			}
		}
	}

	out := make([]model.Event, len(events), len(events)+1)
	copy(out, events)
	return append(out, next)
}

// Fold applies Append to every event in order, starting from an empty
// transcript.
func Fold(events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		out = Append(out, ev)
	}
	return out
}

func mergeMessage(last, next model.MessageEvent) model.MessageEvent {
	return model.MessageEvent{
		Timestamp:     firstNonEmpty(next.Timestamp, last.Timestamp),
		Role:          last.Role,
		Content:       last.Content + next.Content,
		Done:          next.Done,
		ContentBlocks: joinBlocks(last.ContentBlocks, next.ContentBlocks),
		RawContent:    coalesce(next.RawContent, last.RawContent),
	}
}

func mergeThought(last, next model.ThoughtEvent) model.ThoughtEvent {
	return model.ThoughtEvent{
		Timestamp:     firstNonEmpty(next.Timestamp, last.Timestamp),
		Content:       last.Content + next.Content,
		Done:          next.Done,
		ContentBlocks: joinBlocks(last.ContentBlocks, next.ContentBlocks),
		RawContent:    coalesce(next.RawContent, last.RawContent),
	}
}

// mergeToolCall overlays an update onto an existing call. Empty args and
// missing results in the update keep the existing values.
func mergeToolCall(existing, next model.ToolCallEvent) model.ToolCallEvent {
	merged := model.ToolCallEvent{
		Timestamp:  firstNonEmpty(next.Timestamp, existing.Timestamp),
		ID:         existing.ID,
		Tool:       firstNonEmpty(next.Tool, existing.Tool),
		Args:       existing.Args,
		Status:     next.Status,
		Result:     coalesce(next.Result, existing.Result),
		RawContent: coalesce(next.RawContent, existing.RawContent),
	}
	if len(next.Args) > 0 {
		merged.Args = next.Args
	}
	if merged.Status == "" {
		merged.Status = existing.Status
	}
	return merged
}

func joinBlocks(a, b []any) []any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]any, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func coalesce(a, b any) any {
	if a != nil {
		return a
	}
	return b
}
