package feedback

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpgate/helpgate/internal/channel"
)

// PostgresStore persists feedback in the message_feedback table, unique on
// (message_id, reactor_id).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a feedback store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const feedbackCols = `
	id, message_id, channel, reactor_id, user_id, rating, raw_reaction,
	question, answer, explanation, issues, created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, record Record) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO message_feedback
			(message_id, channel, reactor_id, user_id, rating, raw_reaction,
			 question, answer, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (message_id, reactor_id) DO UPDATE
		SET rating = EXCLUDED.rating, raw_reaction = EXCLUDED.raw_reaction,
		    updated_at = now()
		RETURNING `+feedbackCols,
		record.MessageID, string(record.Channel), record.ReactorID,
		record.UserID, string(record.Rating), record.RawReaction,
		record.Question, record.Answer)
	return scanRecord(row)
}

func (s *PostgresStore) Remove(ctx context.Context, messageID, reactorID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM message_feedback
		WHERE message_id = $1 AND reactor_id = $2`,
		messageID, reactorID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, messageID, reactorID string) (Record, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+feedbackCols+` FROM message_feedback
		WHERE message_id = $1 AND reactor_id = $2`,
		messageID, reactorID)
	record, err := scanRecord(row)
	if err == pgx.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

func (s *PostgresStore) AttachFollowUp(ctx context.Context, messageID, reactorID, explanation string, issues []string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE message_feedback
		SET explanation = $3, issues = $4, updated_at = now()
		WHERE message_id = $1 AND reactor_id = $2`,
		messageID, reactorID, explanation, issues)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListForMessage(ctx context.Context, messageID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+feedbackCols+` FROM message_feedback
		WHERE message_id = $1 ORDER BY id`,
		messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var record Record
	var channelID, rating string
	var rawReaction, question, answer, explanation *string
	err := row.Scan(
		&record.ID, &record.MessageID, &channelID, &record.ReactorID,
		&record.UserID, &rating, &rawReaction, &question, &answer,
		&explanation, &record.Issues, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	record.Channel = channel.ID(channelID)
	record.Rating = Rating(rating)
	record.RawReaction = deref(rawReaction)
	record.Question = deref(question)
	record.Answer = deref(answer)
	record.Explanation = deref(explanation)
	return record, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
