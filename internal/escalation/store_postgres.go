package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/learning"
)

// PostgresStore persists escalations in the escalations table. All state
// transitions are single UPDATE statements guarded by the expected current
// state, which makes claim/respond safe under concurrent staff.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates an escalation store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const escalationCols = `
	id, message_id, channel, user_id, question, ai_draft_answer, confidence,
	routing_action, routing_reason, sources, channel_metadata,
	staff_answer, staff_id, edit_distance, staff_answer_rating,
	delivery_status, delivery_attempts, delivery_error,
	status, priority, generated_faq_id,
	created_at, claimed_at, responded_at, closed_at, last_delivery_at`

func (s *PostgresStore) Create(ctx context.Context, params CreateParams) (Escalation, bool, error) {
	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	sources, err := json.Marshal(params.Sources)
	if err != nil {
		return Escalation{}, false, fmt.Errorf("encode sources: %w", err)
	}
	metadata, err := json.Marshal(params.ChannelMetadata)
	if err != nil {
		return Escalation{}, false, fmt.Errorf("encode channel metadata: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO escalations
			(message_id, channel, user_id, question, ai_draft_answer, confidence,
			 routing_action, routing_reason, sources, channel_metadata,
			 delivery_status, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        'not_required', 'pending', $11, now())
		ON CONFLICT (message_id) DO NOTHING
		RETURNING `+escalationCols,
		params.MessageID, string(params.Channel), params.UserID,
		params.Question, params.AIDraftAnswer, params.Confidence,
		string(params.RoutingAction), params.RoutingReason, sources, metadata,
		string(priority))

	esc, err := scanEscalation(row)
	if err == nil {
		return esc, true, nil
	}
	if err != pgx.ErrNoRows {
		return Escalation{}, false, err
	}
	// Conflict: a row for this message id already exists; idempotent create
	// returns it.
	existing, err := s.GetByMessageID(ctx, params.MessageID)
	if err != nil {
		return Escalation{}, false, err
	}
	return existing, false, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Escalation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escalationCols+` FROM escalations WHERE id = $1`, id)
	esc, err := scanEscalation(row)
	if err == pgx.ErrNoRows {
		return Escalation{}, ErrNotFound
	}
	return esc, err
}

func (s *PostgresStore) GetByMessageID(ctx context.Context, messageID string) (Escalation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+escalationCols+` FROM escalations WHERE message_id = $1`, messageID)
	esc, err := scanEscalation(row)
	if err == pgx.ErrNoRows {
		return Escalation{}, ErrNotFound
	}
	return esc, err
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Escalation, error) {
	var conds []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Channel != "" {
		add("channel = $%d", string(filter.Channel))
	}
	if filter.Priority != "" {
		add("priority = $%d", string(filter.Priority))
	}
	if filter.StaffID != "" {
		add("staff_id = $%d", filter.StaffID)
	}
	query := `SELECT ` + escalationCols + ` FROM escalations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Escalation
	for rows.Next() {
		esc, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountsByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM escalations GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[Status]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

func (s *PostgresStore) Claim(ctx context.Context, id int64, staffID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET status = 'in_review', staff_id = $2, claimed_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, staffID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Respond(ctx context.Context, id int64, staffID, answer string, editDistance float64, deliveryStatus DeliveryStatus, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET status = 'responded', staff_id = $2, staff_answer = $3,
		    edit_distance = $4, delivery_status = $5,
		    responded_at = $6, claimed_at = COALESCE(claimed_at, $6)
		WHERE id = $1
		  AND status IN ('pending', 'in_review')
		  AND (staff_id IS NULL OR staff_id = '' OR staff_id = $2)`,
		id, staffID, answer, editDistance, string(deliveryStatus), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Close(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET status = 'closed', closed_at = $2
		WHERE id = $1 AND status <> 'closed'`,
		id, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RecordDeliveryAttempt(ctx context.Context, id int64, status DeliveryStatus, deliveryError string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET delivery_status = $2, delivery_error = $3,
		    delivery_attempts = delivery_attempts + 1, last_delivery_at = $4
		WHERE id = $1`,
		id, string(status), deliveryError, at)
	return err
}

func (s *PostgresStore) RateStaffAnswer(ctx context.Context, messageID string, rating int) (Escalation, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE escalations
		SET staff_answer_rating = $2
		WHERE message_id = $1 AND staff_answer IS NOT NULL AND staff_answer <> ''
		RETURNING `+escalationCols,
		messageID, rating)
	esc, err := scanEscalation(row)
	if err == pgx.ErrNoRows {
		// Distinguish missing row from missing answer.
		if _, getErr := s.GetByMessageID(ctx, messageID); getErr == nil {
			return Escalation{}, ErrNoStaffAnswer
		}
		return Escalation{}, ErrNotFound
	}
	return esc, err
}

func (s *PostgresStore) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET status = 'pending', staff_id = NULL, claimed_at = NULL
		WHERE status = 'in_review' AND claimed_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) AutoClose(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE escalations
		SET status = 'closed', closed_at = now()
		WHERE status = 'responded' AND responded_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) PurgeClosed(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM escalations
		WHERE status = 'closed' AND closed_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) ListUndelivered(ctx context.Context, maxAttempts, limit int) ([]Escalation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+escalationCols+` FROM escalations
		WHERE staff_answer IS NOT NULL AND staff_answer <> ''
		  AND delivery_status IN ('pending', 'failed')
		  AND delivery_attempts < $1
		ORDER BY last_delivery_at NULLS FIRST
		LIMIT $2`,
		maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Escalation
	for rows.Next() {
		esc, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, esc)
	}
	return out, rows.Err()
}

func scanEscalation(row pgx.Row) (Escalation, error) {
	var esc Escalation
	var channelID, routingAction string
	var routingReason, staffAnswer, staffID, deliveryError, generatedFAQID *string
	var sources, metadata []byte
	err := row.Scan(
		&esc.ID, &esc.MessageID, &channelID, &esc.UserID, &esc.Question,
		&esc.AIDraftAnswer, &esc.Confidence, &routingAction, &routingReason,
		&sources, &metadata, &staffAnswer, &staffID, &esc.EditDistance,
		&esc.StaffAnswerRating, (*string)(&esc.DeliveryStatus),
		&esc.DeliveryAttempts, &deliveryError, (*string)(&esc.Status),
		(*string)(&esc.Priority), &generatedFAQID, &esc.CreatedAt,
		&esc.ClaimedAt, &esc.RespondedAt, &esc.ClosedAt, &esc.LastDeliveryAt)
	if err != nil {
		return Escalation{}, err
	}
	esc.Channel = channel.ID(channelID)
	esc.RoutingAction = learning.Action(routingAction)
	esc.RoutingReason = deref(routingReason)
	esc.StaffAnswer = deref(staffAnswer)
	esc.StaffID = deref(staffID)
	esc.DeliveryError = deref(deliveryError)
	esc.GeneratedFAQID = deref(generatedFAQID)
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &esc.Sources); err != nil {
			return Escalation{}, fmt.Errorf("decode sources: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &esc.ChannelMetadata); err != nil {
			return Escalation{}, fmt.Errorf("decode channel metadata: %w", err)
		}
	}
	return esc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
