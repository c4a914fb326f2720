package accounts

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// record is the persisted account including the credential hash.
type record struct {
	Account
	PasswordHash string
}

// Store persists staff accounts.
type Store interface {
	Create(ctx context.Context, rec record) (record, error)
	GetByID(ctx context.Context, id string) (record, bool, error)
	GetByIdentity(ctx context.Context, identity string) (record, bool, error)
	List(ctx context.Context) ([]record, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// MemoryStore is the in-memory store used in tests and single-node setups.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]record
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]record{}}
}

func (s *MemoryStore) Create(_ context.Context, rec record) (record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Username, rec.Username) {
			return record{}, ErrUsernameTaken
		}
	}
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	return rec, ok, nil
}

func (s *MemoryStore) GetByIdentity(_ context.Context, identity string) (record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.byID {
		if strings.EqualFold(rec.Username, identity) || (rec.Email != "" && strings.EqualFold(rec.Email, identity)) {
			return rec, true, nil
		}
	}
	return record{}, false, nil
}

func (s *MemoryStore) List(_ context.Context) ([]record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]record, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *MemoryStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = time.Now().UTC()
	s.byID[id] = rec
	return nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.LastLoginAt = at
	s.byID[id] = rec
	return nil
}
