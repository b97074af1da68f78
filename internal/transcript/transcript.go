package transcript

import (
	"slices"

	"acplog/internal/model"
)

// Transcript owns the folded event sequence of one session view. It keeps an
// index of tool call positions and of the current plan so that upserts do not
// scan the whole sequence. The result is always identical to folding the same
// events with Append.
//
// A Transcript has a single writer and is not safe for concurrent use.
type Transcript struct {
	events    []model.Event
	toolIndex map[string]int
	planIndex int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{toolIndex: make(map[string]int), planIndex: -1}
}

// Add folds ev into the transcript.
func (t *Transcript) Add(ev model.Event) {
	if ev == nil {
		return
	}
	if t.toolIndex == nil {
		t.toolIndex = make(map[string]int)
		t.planIndex = t.findPlan()
	}

	n := len(t.events)
	switch next := ev.(type) {
	case model.MessageEvent:
		if n > 0 {
			if last, ok := t.events[n-1].(model.MessageEvent); ok && !last.Done && last.Role == next.Role {
				t.events[n-1] = mergeMessage(last, next)
				return
			}
		}
	case model.ThoughtEvent:
		if n > 0 {
			if last, ok := t.events[n-1].(model.ThoughtEvent); ok && !last.Done {
				t.events[n-1] = mergeThought(last, next)
				return
			}
		}
	case model.ToolCallEvent:
		if pos, ok := t.toolIndex[next.ID]; ok {
			t.events[pos] = mergeToolCall(t.events[pos].(model.ToolCallEvent), next)
			return
		}
		t.toolIndex[next.ID] = n
	case model.PlanEvent:
		if t.planIndex >= 0 {
			t.events[t.planIndex] = next
			return
		}
		t.planIndex = n
	}

	t.events = append(t.events, ev)
}

// Events returns a copy of the folded events in order.
func (t *Transcript) Events() []model.Event {
	return slices.Clone(t.events)
}

// Len returns the number of folded events.
func (t *Transcript) Len() int {
	return len(t.events)
}

// At returns the event at position i.
func (t *Transcript) At(i int) model.Event {
	return t.events[i]
}

// Last returns the most recent event, if any.
func (t *Transcript) Last() (model.Event, bool) {
	if len(t.events) == 0 {
		return nil, false
	}
	return t.events[len(t.events)-1], true
}

// ToolCall returns the folded tool call with the given id, if any.
func (t *Transcript) ToolCall(id string) (model.ToolCallEvent, bool) {
	pos, ok := t.toolIndex[id]
	if !ok {
		return model.ToolCallEvent{}, false
	}
	call, ok := t.events[pos].(model.ToolCallEvent)
	return call, ok
}

// Reset discards all events, e.g. when the view switches sessions.
func (t *Transcript) Reset() {
	t.events = nil
	t.toolIndex = make(map[string]int)
	t.planIndex = -1
}

func (t *Transcript) findPlan() int {
	for i := len(t.events) - 1; i >= 0; i-- {
		if _, ok := t.events[i].(model.PlanEvent); ok {
			return i
		}
	}
	return -1
}
