package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"acplog/internal/acp"
	"acplog/internal/model"
)

// Label returns the short header label of an event, e.g. "agent" or
// "log:warn".
func Label(ev model.Event) string {
	switch e := ev.(type) {
	case model.MessageEvent:
		return string(e.Role)
	case model.ThoughtEvent:
		return "thought"
	case model.ToolCallEvent:
		return "tool"
	case model.PlanEvent:
		return "plan"
	case model.PermissionRequestEvent:
		return "permission"
	case model.ModeUpdateEvent:
		return "mode"
	case model.LogEvent:
		if e.Level == "" {
			return "log"
		}
		return "log:" + e.Level
	case model.CompleteEvent:
		return "complete"
	default:
		return "event"
	}
}

// RenderEventLines returns the formatted body lines for a transcript event.
func RenderEventLines(ev model.Event, wrapWidth int) []string {
	var body string
	switch e := ev.(type) {
	case model.MessageEvent:
		body = wrapBody(strings.TrimSpace(e.Content), wrapWidth)
	case model.ThoughtEvent:
		body = wrapBody(strings.TrimSpace(e.Content), wrapWidth)
	case model.LogEvent:
		body = wrapBody(strings.TrimSpace(e.Message), wrapWidth)
	case model.ToolCallEvent:
		body = renderToolCall(e)
	case model.PlanEvent:
		body = renderPlan(e)
	case model.PermissionRequestEvent:
		body = renderPermission(e)
	case model.ModeUpdateEvent:
		body = "Mode: " + e.Mode
	case model.CompleteEvent:
		body = fmt.Sprintf("Completed: %s in %s", e.Status, FormatMillis(e.DurationMS))
	}
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// RenderEvent converts an event into a printable block with a
// "[timestamp][label]" header line.
func RenderEvent(ev model.Event, wrapWidth int) string {
	lines := RenderEventLines(ev, wrapWidth)
	return fmt.Sprintf("[%s][%s]\n%s", DisplayTime(ev.Time()), Label(ev), strings.Join(lines, "\n"))
}

// DisplayTime normalizes an event timestamp for display. Unparseable values
// are shown verbatim and missing ones as "-".
func DisplayTime(ts string) string {
	if ts == "" {
		return "-"
	}
	if parsed := model.ParseTime(ts); !parsed.IsZero() {
		return parsed.UTC().Format(time.RFC3339)
	}
	return ts
}

// FormatMillis renders a millisecond duration such as "1m5s".
func FormatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

// PlanMarker returns the checklist marker for a plan entry status.
func PlanMarker(status model.PlanStatus) string {
	switch status {
	case model.PlanDone:
		return "[x]"
	case model.PlanRunning:
		return "[~]"
	default:
		return "[ ]"
	}
}

func renderToolCall(call model.ToolCallEvent) string {
	parts := []string{fmt.Sprintf("Tool: %s [%s]", toolName(call.Tool, call.ID), call.Status)}
	if len(call.Args) > 0 {
		parts = append(parts, "Arguments:\n"+indentJSON(call.Args))
	}
	if call.Result != nil {
		out := ResultText(call.Result)
		if strings.Contains(out, "\n") || formatJSON(out) != out {
			parts = append(parts, "Output:\n"+formatJSON(out))
		} else {
			parts = append(parts, "Output: "+out)
		}
	}
	return strings.Join(parts, "\n")
}

func renderPlan(plan model.PlanEvent) string {
	done := 0
	lines := make([]string, 0, len(plan.Entries)+1)
	for _, entry := range plan.Entries {
		if entry.Status == model.PlanDone {
			done++
		}
		lines = append(lines, fmt.Sprintf("%s %s", PlanMarker(entry.Status), entry.Title))
	}
	header := fmt.Sprintf("Plan (%d/%d)", done, len(plan.Entries))
	return strings.Join(append([]string{header}, lines...), "\n")
}

func renderPermission(req model.PermissionRequestEvent) string {
	parts := []string{"Permission requested: " + toolName(req.Tool, req.ID)}
	if len(req.Args) > 0 {
		parts = append(parts, "Arguments:\n"+indentJSON(req.Args))
	}
	if len(req.Options) > 0 {
		parts = append(parts, "Options: "+strings.Join(req.Options, ", "))
	}
	return strings.Join(parts, "\n")
}

func toolName(tool, id string) string {
	if tool == "" {
		tool = "(unnamed)"
	}
	if id == "" {
		return tool
	}
	return fmt.Sprintf("%s (%s)", tool, id)
}

// ResultText reduces a tool result to display text: strings as-is, content
// blocks flattened, anything else as compact JSON.
func ResultText(result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	if text := acp.Flatten(result); text != "" {
		return text
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprint(result)
	}
	return string(data)
}

func wrapBody(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) > width {
				out = append(out, current)
				current = word
			} else {
				current += " " + word
			}
		}
		out = append(out, current)
	}
	return strings.Join(out, "\n")
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}
