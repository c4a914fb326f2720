// Package orchestrator coordinates one inbound turn: follow-up intercept,
// dedup, thread locking, the gateway pipeline, and dispatch. Coordination
// failures degrade to best-effort processing rather than refusing to serve.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/coordination"
	"github.com/helpgate/helpgate/internal/feedback"
	"github.com/helpgate/helpgate/internal/gateway"
)

// CanonicalInboundEvent is the dedup/locking identity of one inbound
// message.
type CanonicalInboundEvent struct {
	ChannelID channel.ID
	EventID   string
	ThreadID  string
	UserID    string
}

// Canonicalize derives the event identity from the message.
func Canonicalize(msg channel.IncomingMessage) CanonicalInboundEvent {
	return CanonicalInboundEvent{
		ChannelID: msg.Channel,
		EventID:   msg.MessageID,
		ThreadID:  msg.ThreadID(),
		UserID:    msg.User.UserID,
	}
}

// TTLs for the coordination entries an inbound turn writes.
type TTLConfig struct {
	Dedup       time.Duration // default 1h
	ThreadLock  time.Duration // default 15s
	ThreadState time.Duration // default 15m
}

func (c TTLConfig) withDefaults() TTLConfig {
	if c.Dedup <= 0 {
		c.Dedup = time.Hour
	}
	if c.ThreadLock <= 0 {
		c.ThreadLock = 15 * time.Second
	}
	if c.ThreadState <= 0 {
		c.ThreadState = 15 * time.Minute
	}
	return c
}

// threadState is the per-thread bookkeeping kept between turns.
type threadState struct {
	LastEventID string    `json:"last_event_id"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// Orchestrator runs the inbound turn. The coordination store may be nil, in
// which case dedup and locking are skipped and correctness degrades to
// single-process best effort.
type Orchestrator struct {
	gateway    *gateway.Gateway
	dispatcher *Dispatcher
	coord      coordination.Store
	followUp   *feedback.Coordinator
	ttl        TTLConfig
	logger     *slog.Logger
}

// New creates the orchestrator. FollowUp is optional.
func New(log *slog.Logger, gw *gateway.Gateway, dispatcher *Dispatcher, coord coordination.Store, followUp *feedback.Coordinator, ttl TTLConfig) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		gateway:    gw,
		dispatcher: dispatcher,
		coord:      coord,
		followUp:   followUp,
		ttl:        ttl.withDefaults(),
		logger:     log.With(slog.String("service", "orchestrator")),
	}
}

// Outcome reports what one inbound turn did. Synchronous adapters (the web
// channel) read Response; push adapters rely on the dispatcher having sent
// it already.
type Outcome struct {
	Dispatched bool
	Consumed   bool
	Duplicate  bool
	Contended  bool
	Response   *channel.OutgoingMessage
	Err        *channel.GatewayError
}

// ProcessIncoming handles one inbound message. Returns true iff a response
// was dispatched or the message was consumed as a feedback follow-up.
func (o *Orchestrator) ProcessIncoming(ctx context.Context, msg channel.IncomingMessage) bool {
	outcome := o.Handle(ctx, msg)
	return outcome.Dispatched || outcome.Consumed
}

// Handle runs the full inbound turn and reports the detailed outcome.
func (o *Orchestrator) Handle(ctx context.Context, msg channel.IncomingMessage) Outcome {
	// The follow-up intercept runs before dedup so a pending "why" prompt can
	// consume any next message from the user.
	if o.followUp != nil && o.followUp.ConsumeIfPending(ctx, msg) {
		return Outcome{Consumed: true}
	}

	event := Canonicalize(msg)
	if !o.reserveDedup(ctx, event) {
		o.logger.Debug("duplicate inbound event dropped",
			slog.String("channel", event.ChannelID.String()),
			slog.String("event_id", event.EventID))
		return Outcome{Duplicate: true}
	}

	token, acquired := o.acquireThreadLock(ctx, event)
	if !acquired {
		o.logger.Debug("thread contended, yielding",
			slog.String("channel", event.ChannelID.String()),
			slog.String("thread_id", event.ThreadID))
		return Outcome{Contended: true}
	}
	defer o.finishTurn(event, token)

	out, gwErr := o.gateway.ProcessMessage(ctx, msg)
	if gwErr != nil {
		return Outcome{Err: gwErr}
	}
	dispatched := o.dispatcher.Dispatch(ctx, msg, out)
	return Outcome{Dispatched: dispatched, Response: &out}
}

// reserveDedup returns false only on a confirmed duplicate; store errors
// degrade to "unseen".
func (o *Orchestrator) reserveDedup(ctx context.Context, event CanonicalInboundEvent) bool {
	if o.coord == nil {
		return true
	}
	key := coordination.DedupKey(event.ChannelID.String(), event.EventID)
	reserved, err := o.coord.ReserveDedup(ctx, key, o.ttl.Dedup)
	if err != nil {
		o.logger.Warn("dedup reservation failed, proceeding",
			slog.String("key", key), slog.Any("error", err))
		return true
	}
	return reserved
}

// acquireThreadLock returns ("", true) when locking is unavailable and the
// turn proceeds unguarded.
func (o *Orchestrator) acquireThreadLock(ctx context.Context, event CanonicalInboundEvent) (string, bool) {
	if o.coord == nil {
		return "", true
	}
	key := coordination.ThreadLockKey(event.ChannelID.String(), event.ThreadID)
	token, err := o.coord.AcquireLock(ctx, key, o.ttl.ThreadLock)
	if err != nil {
		o.logger.Warn("thread lock failed, proceeding unguarded",
			slog.String("key", key), slog.Any("error", err))
		return "", true
	}
	if token == "" {
		return "", false
	}
	return token, true
}

// finishTurn updates thread state and releases the lock. It runs with its
// own context so shutdown or a cancelled request cannot leak the lock.
func (o *Orchestrator) finishTurn(event CanonicalInboundEvent, token string) {
	if o.coord == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state, err := json.Marshal(threadState{
		LastEventID: event.EventID,
		UserID:      event.UserID,
		Timestamp:   time.Now().UTC(),
	})
	if err == nil {
		stateKey := coordination.ThreadStateKey(event.ChannelID.String(), event.ThreadID)
		if err := o.coord.SetState(ctx, stateKey, string(state), o.ttl.ThreadState); err != nil {
			o.logger.Warn("thread state update failed",
				slog.String("key", stateKey), slog.Any("error", err))
		}
	}

	if token != "" {
		lockKey := coordination.ThreadLockKey(event.ChannelID.String(), event.ThreadID)
		if _, err := o.coord.ReleaseLock(ctx, lockKey, token); err != nil {
			o.logger.Warn("lock release failed",
				slog.String("key", lockKey), slog.Any("error", err))
		}
	}
}
