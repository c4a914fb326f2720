package coordination

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the in-process coordination backend. Expired entries are
// lazily evicted on access and periodically swept.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-process store and starts its sweep goroutine.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		entries: map[string]memoryEntry{},
		done:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) ReserveDedup(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked(key) {
		return false, nil
	}
	s.entries[key] = memoryEntry{value: "1", expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) AcquireLock(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked(key) {
		return "", nil
	}
	token := uuid.NewString()
	s.entries[key] = memoryEntry{value: token, expiresAt: time.Now().Add(ttl)}
	return token, nil
}

func (s *MemoryStore) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) || entry.value != token {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) SetState(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) GetState(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked(key) {
		return "", false, nil
	}
	return s.entries[key].value, true, nil
}

func (s *MemoryStore) DeleteState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the sweep goroutine. Safe to call multiple times.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

// liveLocked reports whether key holds an unexpired entry, evicting it when
// expired. Caller must hold mu.
func (s *MemoryStore) liveLocked(key string) bool {
	entry, ok := s.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return false
	}
	return true
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
