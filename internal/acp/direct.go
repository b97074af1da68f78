package acp

import "acplog/internal/model"

// DirectType is the "type" discriminator of the legacy flat event dialect.
type DirectType string

const (
	DirectMessage  DirectType = "acp_message"
	DirectThought  DirectType = "acp_thought"
	DirectToolCall DirectType = "acp_tool_call"
	DirectPlan     DirectType = "acp_plan"
)

// IsDirectType reports whether t names one of the flat ACP event shapes.
func IsDirectType(t string) bool {
	switch DirectType(t) {
	case DirectMessage, DirectThought, DirectToolCall, DirectPlan:
		return true
	default:
		return false
	}
}

// FromDirect builds a domain event from a flat event object. The field rules
// are the same as for session/update payloads, except that a message must
// carry a known role: it is rejected rather than guessed.
func FromDirect(obj map[string]any) (model.Event, bool) {
	kind, _ := asString(obj["type"])
	ts, _ := asString(obj["timestamp"])

	switch DirectType(kind) {
	case DirectMessage:
		roleValue, _ := asString(obj["role"])
		role, ok := model.ParseRole(roleValue)
		if !ok {
			return nil, false
		}
		return newMessage(obj, role, ts), true
	case DirectThought:
		return newThought(obj, ts), true
	case DirectToolCall:
		return newToolCall(obj, ts)
	case DirectPlan:
		return newPlan(obj, ts), true
	default:
		return nil, false
	}
}
