// Package coordination provides the dedup/lock/thread-state store shared by
// orchestrator workers. Two interchangeable backends exist: an in-process
// store for single-node deployments and a PostgreSQL store for multi-node
// ones. A nil Store degrades the orchestrator to best-effort single-process
// correctness.
package coordination

import (
	"context"
	"fmt"
	"time"
)

// Store is the coordination contract. All operations are atomic against
// concurrent invocations.
type Store interface {
	// ReserveDedup is set-if-absent with TTL; it returns true exactly once
	// per key within the TTL window.
	ReserveDedup(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireLock is set-if-absent with TTL and a random token. It returns
	// ("", nil) when the lock is contended.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)

	// ReleaseLock succeeds only when the provided token matches the current
	// holder, so an expired owner cannot release a re-acquired lock.
	ReleaseLock(ctx context.Context, key, token string) (bool, error)

	// SetState stores an opaque value with TTL (thread state, follow-up
	// pending markers).
	SetState(ctx context.Context, key string, value string, ttl time.Duration) error

	// GetState returns the value for key, or ("", false) when absent or
	// expired.
	GetState(ctx context.Context, key string) (string, bool, error)

	// DeleteState removes the value for key.
	DeleteState(ctx context.Context, key string) error
}

// Key formats are stable; tests and multi-node deployments depend on them.
func DedupKey(channelID, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", channelID, eventID)
}

func ThreadLockKey(channelID, threadID string) string {
	return fmt.Sprintf("thread-lock:%s:%s", channelID, threadID)
}

func ThreadStateKey(channelID, threadID string) string {
	return fmt.Sprintf("thread:%s:%s", channelID, threadID)
}
