package feedback

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps feedback records in memory. Used in tests and
// store-less development mode.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*Record
}

// NewMemoryStore creates an empty in-memory feedback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, records: map[string]*Record{}}
}

func recordKey(messageID, reactorID string) string {
	return messageID + "\x00" + reactorID
}

func (s *MemoryStore) Upsert(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	k := recordKey(record.MessageID, record.ReactorID)
	if existing, ok := s.records[k]; ok {
		existing.Rating = record.Rating
		existing.RawReaction = record.RawReaction
		existing.UpdatedAt = now
		return *existing, nil
	}
	record.ID = s.nextID
	s.nextID++
	record.CreatedAt = now
	record.UpdatedAt = now
	stored := record
	s.records[k] = &stored
	return stored, nil
}

func (s *MemoryStore) Remove(_ context.Context, messageID, reactorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey(messageID, reactorID)
	if _, ok := s.records[k]; !ok {
		return false, nil
	}
	delete(s.records, k)
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, messageID, reactorID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordKey(messageID, reactorID)]
	if !ok {
		return Record{}, false, nil
	}
	return *record, true, nil
}

func (s *MemoryStore) AttachFollowUp(_ context.Context, messageID, reactorID, explanation string, issues []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordKey(messageID, reactorID)]
	if !ok {
		return false, nil
	}
	record.Explanation = explanation
	record.Issues = issues
	record.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *MemoryStore) ListForMessage(_ context.Context, messageID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, record := range s.records {
		if record.MessageID == messageID {
			out = append(out, *record)
		}
	}
	return out, nil
}
