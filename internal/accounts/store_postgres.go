package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpgate/helpgate/internal/db"
)

// PostgresStore persists staff accounts in the staff_accounts table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed account store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const accountCols = `id, username, email, password_hash, role, display_name, is_active, created_at, updated_at, last_login_at`

func (s *PostgresStore) Create(ctx context.Context, rec record) (record, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO staff_accounts (id, username, email, password_hash, role, display_name, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+accountCols,
		rec.ID, rec.Username, nullable(rec.Email), rec.PasswordHash, rec.Role, rec.DisplayName, rec.IsActive)
	out, err := scanAccount(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return record{}, ErrUsernameTaken
		}
		return record{}, err
	}
	return out, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (record, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM staff_accounts WHERE id = $1`, id)
	return oneAccount(row)
}

func (s *PostgresStore) GetByIdentity(ctx context.Context, identity string) (record, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountCols+` FROM staff_accounts
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)`, identity)
	return oneAccount(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountCols+` FROM staff_accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []record
	for rows.Next() {
		rec, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE staff_accounts SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE staff_accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

func oneAccount(row pgx.Row) (record, bool, error) {
	rec, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return record{}, false, nil
		}
		return record{}, false, err
	}
	return rec, true, nil
}

func scanAccount(row pgx.Row) (record, error) {
	var rec record
	var email *string
	var lastLogin *time.Time
	err := row.Scan(&rec.ID, &rec.Username, &email, &rec.PasswordHash, &rec.Role,
		&rec.DisplayName, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt, &lastLogin)
	if err != nil {
		return record{}, err
	}
	if email != nil {
		rec.Email = *email
	}
	if lastLogin != nil {
		rec.LastLoginAt = *lastLogin
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
