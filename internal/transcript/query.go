package transcript

import "acplog/internal/model"

// Filter is a filter-bar category.
type Filter string

const (
	FilterNone     Filter = ""
	FilterMessages Filter = "messages"
	FilterThoughts Filter = "thoughts"
	FilterTools    Filter = "tools"
	FilterPlan     Filter = "plan"
)

// Filters lists every category in chip order.
var Filters = []Filter{FilterMessages, FilterThoughts, FilterTools, FilterPlan}

// FilterType returns the filter category of ev, or FilterNone for events that
// no filter chip covers.
func FilterType(ev model.Event) Filter {
	switch ev.(type) {
	case model.MessageEvent:
		return FilterMessages
	case model.ThoughtEvent:
		return FilterThoughts
	case model.ToolCallEvent, model.PermissionRequestEvent:
		return FilterTools
	case model.PlanEvent:
		return FilterPlan
	default:
		return FilterNone
	}
}

// AvailableFilters returns the categories present in events, in chip order.
func AvailableFilters(events []model.Event) []Filter {
	seen := make(map[Filter]bool, len(Filters))
	for _, ev := range events {
		seen[FilterType(ev)] = true
	}
	var out []Filter
	for _, f := range Filters {
		if seen[f] {
			out = append(out, f)
		}
	}
	return out
}

// ActiveTool identifies a running tool call.
type ActiveTool struct {
	Tool string `json:"tool"`
	ID   string `json:"id"`
}

// ActiveToolCall returns the most recent tool call that is still running.
func ActiveToolCall(events []model.Event) (ActiveTool, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if call, ok := events[i].(model.ToolCallEvent); ok && call.Status == model.ToolRunning {
			return ActiveTool{Tool: call.Tool, ID: call.ID}, true
		}
	}
	return ActiveTool{}, false
}

// Progress counts completed plan entries.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// PlanProgress reports progress of the most recent plan. It returns false when
// there is no plan or the plan has no entries.
func PlanProgress(events []model.Event) (Progress, bool) {
	plan, ok := CurrentPlan(events)
	if !ok || len(plan.Entries) == 0 {
		return Progress{}, false
	}
	progress := Progress{Total: len(plan.Entries)}
	for _, entry := range plan.Entries {
		if entry.Status == model.PlanDone {
			progress.Completed++
		}
	}
	return progress, true
}

// CurrentPlan returns the most recent plan snapshot.
func CurrentPlan(events []model.Event) (model.PlanEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if plan, ok := events[i].(model.PlanEvent); ok {
			return plan, true
		}
	}
	return model.PlanEvent{}, false
}
