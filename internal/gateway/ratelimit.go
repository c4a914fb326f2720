package gateway

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/helpgate/helpgate/internal/channel"
)

// userLimiter tracks one user's token bucket and when it was last used so
// idle buckets can be evicted.
type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-user message rate across all channels.
type RateLimiter struct {
	mu       sync.Mutex
	users    map[string]*userLimiter
	limit    rate.Limit
	burst    int
	lastTrim time.Time
}

// NewRateLimiter allows ratePerMinute messages per user with the given
// burst.
func NewRateLimiter(ratePerMinute float64, burst int) *RateLimiter {
	if ratePerMinute <= 0 {
		ratePerMinute = 20
	}
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{
		users: map[string]*userLimiter{},
		limit: rate.Limit(ratePerMinute / 60),
		burst: burst,
	}
}

// Allow reports whether the user may send another message now.
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	ul, ok := r.users[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.users[userID] = ul
	}
	ul.lastSeen = now
	if now.Sub(r.lastTrim) > 10*time.Minute {
		r.trimLocked(now)
	}
	return ul.limiter.Allow()
}

func (r *RateLimiter) trimLocked(now time.Time) {
	for id, ul := range r.users {
		if now.Sub(ul.lastSeen) > time.Hour {
			delete(r.users, id)
		}
	}
	r.lastTrim = now
}

// NewRateLimitHook builds the pre-hook that rejects over-limit users with
// RATE_LIMIT_EXCEEDED.
func NewRateLimitHook(limiter *RateLimiter) PreHook {
	return PreHook{
		Name:     "rate_limit",
		Priority: PriorityHigh,
		Fn: func(_ context.Context, msg *channel.IncomingMessage) *channel.GatewayError {
			if limiter.Allow(msg.User.UserID) {
				return nil
			}
			return channel.NewGatewayError(channel.ErrRateLimitExceeded,
				"Too many messages, please slow down.").
				WithDetail("user_id", msg.User.UserID)
		},
	}
}
