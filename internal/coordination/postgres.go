package coordination

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// PostgresStore is the multi-node coordination backend. Entries live in a
// single coordination_entries table; expiry is enforced by predicate rather
// than by a background job, with an hourly sweep trimming dead rows.
type PostgresStore struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgresStore creates a Postgres-backed store. Every call is bounded by
// timeout; callers treat timeouts as "degrade to best effort".
func NewPostgresStore(pool *pgxpool.Pool, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &PostgresStore{pool: pool, timeout: timeout}
}

func (s *PostgresStore) ReserveDedup(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO coordination_entries (key, value, expires_at)
		VALUES ($1, '1', now() + $2)
		ON CONFLICT (key) DO UPDATE SET value = '1', expires_at = now() + $2
		WHERE coordination_entries.expires_at <= now()`,
		key, ttl)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	token := uuid.NewString()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO coordination_entries (key, value, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = now() + $3
		WHERE coordination_entries.expires_at <= now()`,
		key, token, ttl)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() != 1 {
		return "", nil
	}
	return token, nil
}

func (s *PostgresStore) ReleaseLock(ctx context.Context, key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM coordination_entries
		WHERE key = $1 AND value = $2 AND expires_at > now()`,
		key, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) SetState(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO coordination_entries (key, value, expires_at)
		VALUES ($1, $2, now() + $3)
		ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = now() + $3`,
		key, value, ttl)
	return err
}

func (s *PostgresStore) GetState(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var value string
	err := s.pool.QueryRow(ctx, `
		SELECT value FROM coordination_entries
		WHERE key = $1 AND expires_at > now()`,
		key).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *PostgresStore) DeleteState(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `DELETE FROM coordination_entries WHERE key = $1`, key)
	return err
}

// SweepExpired removes dead rows; scheduled by the cron runner.
func (s *PostgresStore) SweepExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM coordination_entries WHERE expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
