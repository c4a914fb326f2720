package learning

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpgate/helpgate/internal/db"
)

// PostgresReviewStore persists reviews in the review_records table.
type PostgresReviewStore struct {
	pool *pgxpool.Pool
}

// NewPostgresReviewStore creates a review store over the given pool.
func NewPostgresReviewStore(pool *pgxpool.Pool) *PostgresReviewStore {
	return &PostgresReviewStore{pool: pool}
}

func (s *PostgresReviewStore) Insert(ctx context.Context, review Review) (bool, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_records
			(question_id, rater_id, confidence, admin_action, routing_action,
			 edit_distance, user_rating, source_types, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())`,
		review.QuestionID, review.RaterID, review.Confidence,
		string(review.AdminAction), string(review.RoutingAction),
		review.EditDistance, review.UserRating, review.SourceTypes)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *PostgresReviewStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM review_records`).Scan(&count)
	return count, err
}

func (s *PostgresReviewStore) Recent(ctx context.Context, limit int) ([]Review, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, rater_id, confidence, admin_action, routing_action,
		       edit_distance, user_rating, source_types, created_at
		FROM review_records
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func scanReviews(rows pgx.Rows) ([]Review, error) {
	var out []Review
	for rows.Next() {
		var r Review
		var adminAction, routingAction string
		if err := rows.Scan(&r.QuestionID, &r.RaterID, &r.Confidence,
			&adminAction, &routingAction, &r.EditDistance, &r.UserRating,
			&r.SourceTypes, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.AdminAction = AdminAction(adminAction)
		r.RoutingAction = Action(routingAction)
		out = append(out, r)
	}
	return out, rows.Err()
}
