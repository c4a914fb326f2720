package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpgate/helpgate/internal/channel"
)

// MemoryStore keeps channel policies in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[channel.ID]ChannelPolicy
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: map[channel.ID]ChannelPolicy{}}
}

func (s *MemoryStore) Get(_ context.Context, channelID channel.ID) (ChannelPolicy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[channelID]
	return p, ok, nil
}

func (s *MemoryStore) Upsert(_ context.Context, p ChannelPolicy) (ChannelPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	s.policies[p.Channel] = p
	return p, nil
}

func (s *MemoryStore) List(_ context.Context) ([]ChannelPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChannelPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out, nil
}

// PostgresStore persists channel policies in the channel_policies table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a policy store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, channelID channel.ID) (ChannelPolicy, bool, error) {
	var p ChannelPolicy
	var ch string
	err := s.pool.QueryRow(ctx, `
		SELECT channel, ai_generation_enabled, auto_response_enabled, updated_at
		FROM channel_policies WHERE channel = $1`,
		string(channelID)).
		Scan(&ch, &p.AIGenerationEnabled, &p.AutoResponseEnabled, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ChannelPolicy{}, false, nil
	}
	if err != nil {
		return ChannelPolicy{}, false, err
	}
	p.Channel = channel.ID(ch)
	return p, true, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, p ChannelPolicy) (ChannelPolicy, error) {
	var ch string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO channel_policies
			(channel, ai_generation_enabled, auto_response_enabled, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (channel) DO UPDATE
		SET ai_generation_enabled = EXCLUDED.ai_generation_enabled,
		    auto_response_enabled = EXCLUDED.auto_response_enabled,
		    updated_at = now()
		RETURNING channel, ai_generation_enabled, auto_response_enabled, updated_at`,
		string(p.Channel), p.AIGenerationEnabled, p.AutoResponseEnabled).
		Scan(&ch, &p.AIGenerationEnabled, &p.AutoResponseEnabled, &p.UpdatedAt)
	if err != nil {
		return ChannelPolicy{}, err
	}
	p.Channel = channel.ID(ch)
	return p, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]ChannelPolicy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT channel, ai_generation_enabled, auto_response_enabled, updated_at
		FROM channel_policies ORDER BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChannelPolicy
	for rows.Next() {
		var p ChannelPolicy
		var ch string
		if err := rows.Scan(&ch, &p.AIGenerationEnabled, &p.AutoResponseEnabled, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Channel = channel.ID(ch)
		out = append(out, p)
	}
	return out, rows.Err()
}
