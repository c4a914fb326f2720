// Package tracker keeps a TTL-bounded record of messages the gateway has
// dispatched, keyed by (channel, external message id). The reaction
// processor resolves channel-native reactions against it.
package tracker

import (
	"sync"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

// Record describes one delivered message.
type Record struct {
	InternalMessageID string
	Question          string
	Answer            string
	UserID            string
	Timestamp         time.Time
	Sources           []channel.Source
	ConfidenceScore   *float64
	RequiresHuman     bool
	RoutingAction     string
	DeliveryTarget    string
}

type entry struct {
	record    Record
	expiresAt time.Time
}

// Tracker is a thread-safe TTL map from (channel, external message id) to
// Record. Expired entries are lazily evicted on lookup; SweepExpired trims
// the rest so memory stays bounded.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// New creates a tracker with the given record TTL (default 24h).
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{
		entries: map[string]entry{},
		ttl:     ttl,
	}
}

func key(channelID channel.ID, externalID string) string {
	return string(channelID) + "\x00" + externalID
}

// Track records a delivered message, overwriting any previous record under
// the same key.
func (t *Tracker) Track(channelID channel.ID, externalID string, record Record) {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key(channelID, externalID)] = entry{
		record:    record,
		expiresAt: time.Now().Add(t.ttl),
	}
}

// Lookup returns the record for (channel, external id), or false when the
// entry is missing or expired. Identical external ids across channels are
// independent.
func (t *Tracker) Lookup(channelID channel.ID, externalID string) (Record, bool) {
	k := key(channelID, externalID)
	t.mu.RLock()
	e, ok := t.entries[k]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	if time.Now().After(e.expiresAt) {
		t.mu.Lock()
		if cur, still := t.entries[k]; still && time.Now().After(cur.expiresAt) {
			delete(t.entries, k)
		}
		t.mu.Unlock()
		return Record{}, false
	}
	return e.record, true
}

// Remove deletes the record for (channel, external id).
func (t *Tracker) Remove(channelID channel.ID, externalID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key(channelID, externalID))
}

// Len returns the number of live entries (expired but unswept entries count).
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// SweepExpired removes expired entries and returns how many were dropped.
func (t *Tracker) SweepExpired() int {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	dropped := 0
	for k, e := range t.entries {
		if now.After(e.expiresAt) {
			delete(t.entries, k)
			dropped++
		}
	}
	return dropped
}
