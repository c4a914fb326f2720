package escalation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps escalations in memory. Used in tests and store-less
// development mode; the Postgres store is the production backend.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*Escalation
	byMsg  map[string]int64
}

// NewMemoryStore creates an empty in-memory escalation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   map[int64]*Escalation{},
		byMsg:  map[string]int64{},
	}
}

func (s *MemoryStore) Create(_ context.Context, params CreateParams) (Escalation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, exists := s.byMsg[params.MessageID]; exists {
		return *s.byID[id], false, nil
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	esc := &Escalation{
		ID:              s.nextID,
		MessageID:       params.MessageID,
		Channel:         params.Channel,
		UserID:          params.UserID,
		Question:        params.Question,
		AIDraftAnswer:   params.AIDraftAnswer,
		Confidence:      params.Confidence,
		RoutingAction:   params.RoutingAction,
		RoutingReason:   params.RoutingReason,
		Sources:         params.Sources,
		ChannelMetadata: params.ChannelMetadata,
		DeliveryStatus:  DeliveryNotRequired,
		Status:          StatusPending,
		Priority:        priority,
		CreatedAt:       time.Now().UTC(),
	}
	s.nextID++
	s.byID[esc.ID] = esc
	s.byMsg[esc.MessageID] = esc.ID
	return *esc, true, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc, ok := s.byID[id]
	if !ok {
		return Escalation{}, ErrNotFound
	}
	return *esc, nil
}

func (s *MemoryStore) GetByMessageID(_ context.Context, messageID string) (Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byMsg[messageID]
	if !ok {
		return Escalation{}, ErrNotFound
	}
	return *s.byID[id], nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Escalation
	for _, esc := range s.byID {
		if filter.Status != "" && esc.Status != filter.Status {
			continue
		}
		if filter.Channel != "" && esc.Channel != filter.Channel {
			continue
		}
		if filter.Priority != "" && esc.Priority != filter.Priority {
			continue
		}
		if filter.StaffID != "" && esc.StaffID != filter.StaffID {
			continue
		}
		out = append(out, *esc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountsByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[Status]int{}
	for _, esc := range s.byID {
		counts[esc.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) Claim(_ context.Context, id int64, staffID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc, ok := s.byID[id]
	if !ok || esc.Status != StatusPending {
		return false, nil
	}
	esc.Status = StatusInReview
	esc.StaffID = staffID
	claimedAt := at
	esc.ClaimedAt = &claimedAt
	return true, nil
}

func (s *MemoryStore) Respond(_ context.Context, id int64, staffID, answer string, editDistance float64, deliveryStatus DeliveryStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc, ok := s.byID[id]
	if !ok {
		return false, nil
	}
	if esc.Status != StatusPending && esc.Status != StatusInReview {
		return false, nil
	}
	if esc.StaffID != "" && esc.StaffID != staffID {
		return false, nil
	}
	esc.Status = StatusResponded
	esc.StaffID = staffID
	esc.StaffAnswer = answer
	esc.EditDistance = &editDistance
	esc.DeliveryStatus = deliveryStatus
	respondedAt := at
	esc.RespondedAt = &respondedAt
	if esc.ClaimedAt == nil {
		claimedAt := at
		esc.ClaimedAt = &claimedAt
	}
	return true, nil
}

func (s *MemoryStore) Close(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc, ok := s.byID[id]
	if !ok || esc.Status == StatusClosed {
		return false, nil
	}
	esc.Status = StatusClosed
	closedAt := at
	esc.ClosedAt = &closedAt
	return true, nil
}

func (s *MemoryStore) RecordDeliveryAttempt(_ context.Context, id int64, status DeliveryStatus, deliveryError string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	esc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	esc.DeliveryStatus = status
	esc.DeliveryError = deliveryError
	esc.DeliveryAttempts++
	lastAt := at
	esc.LastDeliveryAt = &lastAt
	return nil
}

func (s *MemoryStore) RateStaffAnswer(_ context.Context, messageID string, rating int) (Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byMsg[messageID]
	if !ok {
		return Escalation{}, ErrNotFound
	}
	esc := s.byID[id]
	if esc.StaffAnswer == "" {
		return Escalation{}, ErrNoStaffAnswer
	}
	esc.StaffAnswerRating = &rating
	return *esc, nil
}

func (s *MemoryStore) ReleaseStaleClaims(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	released := 0
	for _, esc := range s.byID {
		if esc.Status == StatusInReview && esc.ClaimedAt != nil && esc.ClaimedAt.Before(cutoff) {
			esc.Status = StatusPending
			esc.StaffID = ""
			esc.ClaimedAt = nil
			released++
		}
	}
	return released, nil
}

func (s *MemoryStore) AutoClose(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	now := time.Now().UTC()
	for _, esc := range s.byID {
		if esc.Status == StatusResponded && esc.RespondedAt != nil && esc.RespondedAt.Before(cutoff) {
			esc.Status = StatusClosed
			closedAt := now
			esc.ClosedAt = &closedAt
			closed++
		}
	}
	return closed, nil
}

func (s *MemoryStore) PurgeClosed(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, esc := range s.byID {
		if esc.Status == StatusClosed && esc.ClosedAt != nil && esc.ClosedAt.Before(cutoff) {
			delete(s.byID, id)
			delete(s.byMsg, esc.MessageID)
			purged++
		}
	}
	return purged, nil
}

func (s *MemoryStore) ListUndelivered(_ context.Context, maxAttempts, limit int) ([]Escalation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Escalation
	for _, esc := range s.byID {
		if esc.StaffAnswer == "" {
			continue
		}
		if esc.DeliveryStatus != DeliveryPending && esc.DeliveryStatus != DeliveryFailed {
			continue
		}
		if maxAttempts > 0 && esc.DeliveryAttempts >= maxAttempts {
			continue
		}
		out = append(out, *esc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
