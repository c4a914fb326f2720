// Package feedback stores user reactions to delivered answers and runs the
// follow-up conversation that asks unhappy users why the answer missed.
package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

// Rating is the user's verdict on an answer.
type Rating string

const (
	RatingPositive Rating = "positive"
	RatingNegative Rating = "negative"
)

// ParseRating maps the wire form {0,1} to a rating.
func ParseRating(value int) (Rating, error) {
	switch value {
	case 1:
		return RatingPositive, nil
	case 0:
		return RatingNegative, nil
	}
	return "", errors.New("rating must be 0 or 1")
}

// Record is one user's feedback on one delivered answer. A reactor has at
// most one record per message; re-reacting overwrites the rating.
type Record struct {
	ID          int64      `json:"id"`
	MessageID   string     `json:"message_id"`
	Channel     channel.ID `json:"channel"`
	ReactorID   string     `json:"reactor_id"`
	UserID      string     `json:"user_id"`
	Rating      Rating     `json:"rating"`
	RawReaction string     `json:"raw_reaction,omitempty"`
	Question    string     `json:"question,omitempty"`
	Answer      string     `json:"answer,omitempty"`
	Explanation string     `json:"explanation,omitempty"`
	Issues      []string   `json:"issues,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Store persists feedback records.
type Store interface {
	// Upsert inserts the record or overwrites the rating of an existing
	// (message_id, reactor_id) record, preserving any follow-up text.
	Upsert(ctx context.Context, record Record) (Record, error)

	// Remove deletes the (message_id, reactor_id) record; false when absent.
	Remove(ctx context.Context, messageID, reactorID string) (bool, error)

	// Get returns the (message_id, reactor_id) record.
	Get(ctx context.Context, messageID, reactorID string) (Record, bool, error)

	// AttachFollowUp appends the explanation and issue tags to an existing
	// record; false when the record is gone.
	AttachFollowUp(ctx context.Context, messageID, reactorID, explanation string, issues []string) (bool, error)

	// ListForMessage returns all feedback recorded for the message.
	ListForMessage(ctx context.Context, messageID string) ([]Record, error)
}
