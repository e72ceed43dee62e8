// Package decision turns free-form model replies into validated state
// transitions. Executor.Apply is a pure state machine: every call
// terminates with exactly one action-outcome entry on the worker.
package decision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionKind enumerates the actions a worker can take in a cycle.
type ActionKind int

const (
	// ActionUnknown is any unparseable or unrecognized reply. It is
	// routed to the stay fallback.
	ActionUnknown ActionKind = iota
	ActionStay
	ActionMove
	ActionMessage
	ActionAssignService
	ActionProposeTask
)

func (k ActionKind) String() string {
	switch k {
	case ActionStay:
		return "stay"
	case ActionMove:
		return "move"
	case ActionMessage:
		return "message"
	case ActionAssignService:
		return "assign_service"
	case ActionProposeTask:
		return "propose_task"
	default:
		return "unknown"
	}
}

// Action is one decoded worker decision.
type Action struct {
	Kind ActionKind

	// Move.
	Location string
	// Message.
	Recipient string
	Content   string
	// Assign service.
	ServiceID string
	Worker    string
	// Propose task.
	Description string
}

type rawAction struct {
	Action      string `json:"action"`
	Location    string `json:"location"`
	Recipient   string `json:"recipient"`
	Content     string `json:"content"`
	ServiceID   string `json:"service_id"`
	Worker      string `json:"worker"`
	Description string `json:"description"`
}

// ParseAction decodes a model reply into an Action. Models wrap the JSON
// object in prose often enough that a failed full-body decode falls back
// to the outermost brace-delimited slice.
func ParseAction(raw string) (Action, error) {
	var ra rawAction
	if err := json.Unmarshal([]byte(raw), &ra); err != nil {
		obj, ok := extractObject(raw)
		if !ok {
			return Action{}, fmt.Errorf("no JSON object in reply")
		}
		if err := json.Unmarshal([]byte(obj), &ra); err != nil {
			return Action{}, fmt.Errorf("decoding action: %w", err)
		}
	}

	a := Action{
		Location:    strings.TrimSpace(ra.Location),
		Recipient:   strings.TrimSpace(ra.Recipient),
		Content:     strings.TrimSpace(ra.Content),
		ServiceID:   strings.TrimSpace(ra.ServiceID),
		Worker:      strings.TrimSpace(ra.Worker),
		Description: strings.TrimSpace(ra.Description),
	}
	switch strings.ToLower(strings.TrimSpace(ra.Action)) {
	case "stay":
		a.Kind = ActionStay
	case "move":
		a.Kind = ActionMove
	case "message":
		a.Kind = ActionMessage
	case "assign_service":
		a.Kind = ActionAssignService
	case "propose_task":
		a.Kind = ActionProposeTask
	default:
		return Action{}, fmt.Errorf("unknown action %q", ra.Action)
	}
	return a, nil
}

func extractObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
