package learning

import (
	"context"
	"sync"
	"time"
)

// MemoryReviewStore keeps reviews in memory. Used in tests and store-less
// development mode.
type MemoryReviewStore struct {
	mu      sync.Mutex
	reviews []Review
	seen    map[string]struct{}
}

// NewMemoryReviewStore creates an empty in-memory review store.
func NewMemoryReviewStore() *MemoryReviewStore {
	return &MemoryReviewStore{seen: map[string]struct{}{}}
}

func (s *MemoryReviewStore) Insert(_ context.Context, review Review) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := review.QuestionID + "\x00" + review.RaterID
	if _, dup := s.seen[key]; dup {
		return false, nil
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	s.seen[key] = struct{}{}
	s.reviews = append(s.reviews, review)
	return true, nil
}

func (s *MemoryReviewStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews), nil
}

func (s *MemoryReviewStore) Recent(_ context.Context, limit int) ([]Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.reviews)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Review, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.reviews[n-1-i]
	}
	return out, nil
}
