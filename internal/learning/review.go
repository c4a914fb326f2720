package learning

import (
	"context"
	"time"
)

// AdminAction is a staff member's verdict on an AI draft.
type AdminAction string

const (
	AdminApproved AdminAction = "approved"
	AdminEdited   AdminAction = "edited"
	AdminRejected AdminAction = "rejected"
)

// Review is one recorded staff decision about an AI answer.
type Review struct {
	QuestionID    string      `json:"question_id"`
	RaterID       string      `json:"rater_id"`
	Confidence    float64     `json:"confidence"`
	AdminAction   AdminAction `json:"admin_action"`
	RoutingAction Action      `json:"routing_action"`
	EditDistance  *float64    `json:"edit_distance,omitempty"`
	UserRating    *int        `json:"user_rating,omitempty"`
	SourceTypes   []string    `json:"source_types,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Quadrant classifies a review on the 2x2 approved x helpful grid.
// Approved means the staff answer matched the draft (edit distance 0);
// helpful means the user rated the staff answer positively.
type Quadrant string

const (
	QuadrantA Quadrant = "A" // approved, helpful
	QuadrantB Quadrant = "B" // approved, not helpful
	QuadrantC Quadrant = "C" // edited, helpful
	QuadrantD Quadrant = "D" // edited/rejected, not helpful
)

// QuadrantWeights bias the threshold recomputation: unhelpful approvals and
// unhelpful edits teach the most.
var QuadrantWeights = map[Quadrant]float64{
	QuadrantA: 1,
	QuadrantB: 3,
	QuadrantC: 1.5,
	QuadrantD: 5,
}

// Classify places the review into its quadrant. A missing user rating
// defaults to helpful, a rejection is never approved.
func (r Review) Classify() Quadrant {
	approved := r.AdminAction == AdminApproved
	if r.EditDistance != nil {
		approved = approved && *r.EditDistance == 0
	}
	if r.AdminAction == AdminRejected {
		approved = false
	}
	helpful := r.UserRating == nil || *r.UserRating == 1
	switch {
	case approved && helpful:
		return QuadrantA
	case approved && !helpful:
		return QuadrantB
	case !approved && helpful:
		return QuadrantC
	default:
		return QuadrantD
	}
}

// Weight returns the quadrant weight of the review.
func (r Review) Weight() float64 {
	return QuadrantWeights[r.Classify()]
}

// ReviewStore persists staff review records.
type ReviewStore interface {
	// Insert stores the review. It returns false when a record for the same
	// (question_id, rater_id) already exists, preventing double counting.
	Insert(ctx context.Context, review Review) (bool, error)

	// Count returns the number of stored reviews.
	Count(ctx context.Context) (int, error)

	// Recent returns up to limit reviews, newest first.
	Recent(ctx context.Context, limit int) ([]Review, error)
}
