package escalation

import (
	"context"
	"time"
)

// Store persists escalations. Claim, Respond and Close are compare-and-update
// primitives: they report false when the row was not in the expected state,
// and the service re-reads to dispatch by terminal state. The store is the
// single writer to escalation rows.
type Store interface {
	// Create inserts a new escalation. When a row for the same message id
	// already exists, the existing row is returned with created=false.
	Create(ctx context.Context, params CreateParams) (Escalation, bool, error)

	Get(ctx context.Context, id int64) (Escalation, error)
	GetByMessageID(ctx context.Context, messageID string) (Escalation, error)
	List(ctx context.Context, filter Filter) ([]Escalation, error)
	CountsByStatus(ctx context.Context) (map[Status]int, error)

	// Claim moves PENDING -> IN_REVIEW for staffID; false when the row was
	// not pending.
	Claim(ctx context.Context, id int64, staffID string, at time.Time) (bool, error)

	// Respond moves PENDING/IN_REVIEW -> RESPONDED when unclaimed or claimed
	// by staffID; false otherwise.
	Respond(ctx context.Context, id int64, staffID, answer string, editDistance float64, deliveryStatus DeliveryStatus, at time.Time) (bool, error)

	// Close moves any non-closed row to CLOSED; false when already closed or
	// missing.
	Close(ctx context.Context, id int64, at time.Time) (bool, error)

	// RecordDeliveryAttempt updates delivery state and increments the
	// attempt counter.
	RecordDeliveryAttempt(ctx context.Context, id int64, status DeliveryStatus, deliveryError string, at time.Time) error

	// RateStaffAnswer sets the user's rating iff a staff answer exists.
	RateStaffAnswer(ctx context.Context, messageID string, rating int) (Escalation, error)

	// ReleaseStaleClaims returns IN_REVIEW rows claimed before cutoff to
	// PENDING, clearing the claim.
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error)

	// AutoClose closes RESPONDED rows answered before cutoff.
	AutoClose(ctx context.Context, cutoff time.Time) (int, error)

	// PurgeClosed deletes CLOSED rows closed before cutoff.
	PurgeClosed(ctx context.Context, cutoff time.Time) (int, error)

	// ListUndelivered returns rows with a staff answer whose delivery is
	// pending or failed with fewer than maxAttempts attempts.
	ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]Escalation, error)
}
