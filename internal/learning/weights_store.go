package learning

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryWeightStore keeps source weights in memory.
type MemoryWeightStore struct {
	mu      sync.Mutex
	weights map[string]float64
}

// NewMemoryWeightStore creates an empty in-memory weight store.
func NewMemoryWeightStore() *MemoryWeightStore {
	return &MemoryWeightStore{weights: map[string]float64{}}
}

func (s *MemoryWeightStore) GetAll(_ context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryWeightStore) Upsert(_ context.Context, sourceType string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weights[sourceType] = weight
	return nil
}

// PostgresWeightStore persists source weights in the source_weights table.
type PostgresWeightStore struct {
	pool *pgxpool.Pool
}

// NewPostgresWeightStore creates a weight store over the given pool.
func NewPostgresWeightStore(pool *pgxpool.Pool) *PostgresWeightStore {
	return &PostgresWeightStore{pool: pool}
}

func (s *PostgresWeightStore) GetAll(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_type, weight FROM source_weights`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]float64{}
	for rows.Next() {
		var src string
		var w float64
		if err := rows.Scan(&src, &w); err != nil {
			return nil, err
		}
		out[src] = w
	}
	return out, rows.Err()
}

func (s *PostgresWeightStore) Upsert(ctx context.Context, sourceType string, weight float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_weights (source_type, weight, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source_type) DO UPDATE SET weight = $2, updated_at = now()`,
		sourceType, weight)
	return err
}
