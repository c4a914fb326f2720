// Package learning owns the auto-send router, the threshold learning engine
// fed by staff review outcomes, and the per-source-type weight manager.
package learning

import "strings"

// Action is the routing decision for one answered question. The ordering
// needs_human < queue_medium < auto_send is part of the contract: a higher
// confidence never routes to a stricter action.
type Action string

const (
	ActionNeedsHuman  Action = "needs_human"
	ActionQueueMedium Action = "queue_medium"
	ActionAutoSend    Action = "auto_send"
)

func (a Action) String() string { return string(a) }

// Rank orders actions by permissiveness.
func (a Action) Rank() int {
	switch a {
	case ActionAutoSend:
		return 2
	case ActionQueueMedium:
		return 1
	default:
		return 0
	}
}

// ParseAction normalizes a free-form routing action from the answer engine
// onto the core enum. Unknown values fall back to queue_medium so nothing
// auto-sends by accident.
func ParseAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "auto_send", "autosend", "send", "auto":
		return ActionAutoSend
	case "needs_human", "needs_human_expertise", "human", "escalate", "queue_high":
		return ActionNeedsHuman
	case "queue_medium", "queue", "review", "queue_for_review":
		return ActionQueueMedium
	case "":
		return ActionQueueMedium
	default:
		return ActionQueueMedium
	}
}
