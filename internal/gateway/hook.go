package gateway

import (
	"context"
	"sort"

	"github.com/helpgate/helpgate/internal/channel"
)

// Hook priorities. Lower runs earlier; hooks sharing a priority run in
// registration order.
const (
	PriorityHigh   = 100
	PriorityNormal = 200
	PriorityLow    = 300
)

// PreHookFunc runs before the answer service. It may mutate the incoming
// message (sanitize the question, annotate metadata) or halt the pipeline
// by returning a GatewayError.
type PreHookFunc func(ctx context.Context, msg *channel.IncomingMessage) *channel.GatewayError

// PostHookFunc runs after the answer service with both the incoming message
// and the outgoing response. It may mutate the response or short-circuit
// the remaining post-hooks with a GatewayError.
type PostHookFunc func(ctx context.Context, msg *channel.IncomingMessage, out *channel.OutgoingMessage) *channel.GatewayError

// PreHook is a named, prioritized pre-processing step.
type PreHook struct {
	Name     string
	Priority int
	Fn       PreHookFunc

	seq int
}

// PostHook is a named, prioritized post-processing step.
type PostHook struct {
	Name     string
	Priority int
	Fn       PostHookFunc

	seq int
}

func sortPreHooks(hooks []PreHook) {
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].Priority != hooks[j].Priority {
			return hooks[i].Priority < hooks[j].Priority
		}
		return hooks[i].seq < hooks[j].seq
	})
}

func sortPostHooks(hooks []PostHook) {
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].Priority != hooks[j].Priority {
			return hooks[i].Priority < hooks[j].Priority
		}
		return hooks[i].seq < hooks[j].seq
	})
}
