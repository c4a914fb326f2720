// Package escalation implements the human-in-the-loop review lifecycle:
// PENDING -> IN_REVIEW -> RESPONDED -> CLOSED, with atomic claim/respond,
// channel-aware delivery of staff answers, and background sweepers.
package escalation

import (
	"errors"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/learning"
)

// Status is the escalation lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusInReview  Status = "in_review"
	StatusResponded Status = "responded"
	StatusClosed    Status = "closed"
)

// DeliveryStatus tracks the staff answer's journey back to the user.
type DeliveryStatus string

const (
	DeliveryNotRequired DeliveryStatus = "not_required"
	DeliveryPending     DeliveryStatus = "pending"
	DeliveryDelivered   DeliveryStatus = "delivered"
	DeliveryFailed      DeliveryStatus = "failed"
)

// Priority of an escalation in the review queue.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

var (
	// ErrNotFound is returned for missing rows and for closed rows on
	// claim/respond (closed is treated as gone).
	ErrNotFound = errors.New("escalation not found")

	// ErrAlreadyClaimed is returned when another staff member holds the
	// claim.
	ErrAlreadyClaimed = errors.New("escalation already claimed")

	// ErrNoStaffAnswer is returned when rating an escalation that has no
	// staff answer yet.
	ErrNoStaffAnswer = errors.New("escalation has no staff answer")
)

// Escalation captures a question whose AI answer was not auto-sent and
// requires a human response.
type Escalation struct {
	ID                int64             `json:"id"`
	MessageID         string            `json:"message_id"`
	Channel           channel.ID        `json:"channel"`
	UserID            string            `json:"user_id"`
	Question          string            `json:"question"`
	AIDraftAnswer     string            `json:"ai_draft_answer"`
	Confidence        float64           `json:"confidence"`
	RoutingAction     learning.Action   `json:"routing_action"`
	RoutingReason     string            `json:"routing_reason,omitempty"`
	Sources           []channel.Source  `json:"sources,omitempty"`
	ChannelMetadata   map[string]string `json:"channel_metadata,omitempty"`
	StaffAnswer       string            `json:"staff_answer,omitempty"`
	StaffID           string            `json:"staff_id,omitempty"`
	EditDistance      *float64          `json:"edit_distance,omitempty"`
	StaffAnswerRating *int              `json:"staff_answer_rating,omitempty"`
	DeliveryStatus    DeliveryStatus    `json:"delivery_status"`
	DeliveryAttempts  int               `json:"delivery_attempts"`
	DeliveryError     string            `json:"delivery_error,omitempty"`
	Status            Status            `json:"status"`
	Priority          Priority          `json:"priority"`
	GeneratedFAQID    string            `json:"generated_faq_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ClaimedAt         *time.Time        `json:"claimed_at,omitempty"`
	RespondedAt       *time.Time        `json:"responded_at,omitempty"`
	ClosedAt          *time.Time        `json:"closed_at,omitempty"`
	LastDeliveryAt    *time.Time        `json:"last_delivery_at,omitempty"`
}

// CreateParams is the input to Service.Create.
type CreateParams struct {
	MessageID       string
	Channel         channel.ID
	UserID          string
	Question        string
	AIDraftAnswer   string
	Confidence      float64
	RoutingAction   learning.Action
	RoutingReason   string
	Sources         []channel.Source
	ChannelMetadata map[string]string
	Priority        Priority
}

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status   Status
	Channel  channel.ID
	Priority Priority
	StaffID  string
	Limit    int
	Offset   int
}
