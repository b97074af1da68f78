package transcript

import (
	"reflect"
	"testing"

	"acplog/internal/model"
)

func TestFilterType(t *testing.T) {
	cases := []struct {
		ev   model.Event
		want Filter
	}{
		{model.MessageEvent{}, FilterMessages},
		{model.ThoughtEvent{}, FilterThoughts},
		{model.ToolCallEvent{}, FilterTools},
		{model.PermissionRequestEvent{}, FilterTools},
		{model.PlanEvent{}, FilterPlan},
		{model.LogEvent{}, FilterNone},
		{model.CompleteEvent{}, FilterNone},
		{model.ModeUpdateEvent{}, FilterNone},
	}
	for _, tc := range cases {
		if got := FilterType(tc.ev); got != tc.want {
			t.Fatalf("FilterType(%T) = %q, want %q", tc.ev, got, tc.want)
		}
	}
}

func TestAvailableFilters(t *testing.T) {
	events := []model.Event{
		model.PlanEvent{},
		model.LogEvent{},
		model.PermissionRequestEvent{},
		model.MessageEvent{},
	}
	want := []Filter{FilterMessages, FilterTools, FilterPlan}
	if got := AvailableFilters(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("AvailableFilters = %v, want %v", got, want)
	}
	if got := AvailableFilters(nil); len(got) != 0 {
		t.Fatalf("expected no filters for empty transcript, got %v", got)
	}
}

func TestActiveToolCall(t *testing.T) {
	events := Fold([]model.Event{
		model.ToolCallEvent{ID: "t1", Tool: "bash", Status: model.ToolRunning},
		model.ToolCallEvent{ID: "t2", Tool: "grep", Status: model.ToolRunning},
	})

	active, ok := ActiveToolCall(events)
	if !ok || active != (ActiveTool{Tool: "grep", ID: "t2"}) {
		t.Fatalf("expected t2 to be active, got %#v (ok=%v)", active, ok)
	}

	events = Append(events, model.ToolCallEvent{ID: "t2", Status: model.ToolCompleted})
	if active, ok := ActiveToolCall(events); !ok || active.ID != "t1" {
		t.Fatalf("expected t1 to be active, got %#v", active)
	}

	events = Append(events, model.ToolCallEvent{ID: "t1", Status: model.ToolFailed})
	if active, ok := ActiveToolCall(events); ok {
		t.Fatalf("expected no active tool call, got %#v", active)
	}
}

func TestPlanProgress(t *testing.T) {
	if _, ok := PlanProgress(nil); ok {
		t.Fatal("expected no progress without a plan")
	}
	if _, ok := PlanProgress([]model.Event{model.PlanEvent{}}); ok {
		t.Fatal("expected no progress for an empty plan")
	}

	events := []model.Event{
		model.PlanEvent{Entries: []model.PlanEntry{
			{ID: "1", Status: model.PlanDone},
			{ID: "2", Status: model.PlanRunning},
			{ID: "3", Status: model.PlanPending},
		}},
	}
	progress, ok := PlanProgress(events)
	if !ok || progress != (Progress{Completed: 1, Total: 3}) {
		t.Fatalf("unexpected progress %#v (ok=%v)", progress, ok)
	}
}
