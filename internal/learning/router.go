package learning

import "github.com/helpgate/helpgate/internal/channel"

// Thresholds are the confidence cut points the router applies.
type Thresholds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Default thresholds before any learning has happened.
const (
	DefaultHighThreshold = 0.95
	DefaultLowThreshold  = 0.70
)

// DefaultThresholds returns the pre-learning cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{High: DefaultHighThreshold, Low: DefaultLowThreshold}
}

// ThresholdProvider yields the currently published thresholds. The router
// resolves them on every call so learned updates take effect without
// restart.
type ThresholdProvider interface {
	CurrentThresholds() Thresholds
}

// Decision is the routing outcome for one confidence score.
type Decision struct {
	Action          Action           `json:"action"`
	SendImmediately bool             `json:"send_immediately"`
	QueueForReview  bool             `json:"queue_for_review"`
	Priority        channel.Priority `json:"priority"`
	Flag            string           `json:"flag,omitempty"`
}

// Router maps a confidence score to an auto-send decision.
type Router struct {
	thresholds ThresholdProvider
}

// NewRouter creates a router resolving thresholds from the given provider.
// A nil provider pins the defaults.
func NewRouter(provider ThresholdProvider) *Router {
	return &Router{thresholds: provider}
}

// RouteResponse classifies the confidence score. The mapping is monotone in
// the confidence for fixed thresholds.
func (r *Router) RouteResponse(confidence float64) Decision {
	t := DefaultThresholds()
	if r.thresholds != nil {
		t = r.thresholds.CurrentThresholds()
	}
	switch {
	case confidence >= t.High:
		return Decision{
			Action:          ActionAutoSend,
			SendImmediately: true,
			Priority:        channel.PriorityNormal,
		}
	case confidence >= t.Low:
		return Decision{
			Action:         ActionQueueMedium,
			QueueForReview: true,
			Priority:       channel.PriorityNormal,
		}
	default:
		return Decision{
			Action:         ActionNeedsHuman,
			QueueForReview: true,
			Priority:       channel.PriorityHigh,
			Flag:           "needs_human_expertise",
		}
	}
}
