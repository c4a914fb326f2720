package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/learning"
)

// Config tunes the escalation lifecycle.
type Config struct {
	ClaimTTL       time.Duration // stale claim release, default 30m
	AutoCloseAfter time.Duration // responded -> closed, default 72h
	Retention      time.Duration // closed row purge, default 90d
	MaxDeliveries  int           // delivery retry bound, default 3
	SupportHandle  string
}

func (c Config) withDefaults() Config {
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 30 * time.Minute
	}
	if c.AutoCloseAfter <= 0 {
		c.AutoCloseAfter = 72 * time.Hour
	}
	if c.Retention <= 0 {
		c.Retention = 90 * 24 * time.Hour
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 3
	}
	return c
}

// Service is the escalation state machine. All transitions go through the
// store's compare-and-update primitives; on conflict the service re-reads
// and dispatches by the terminal state.
type Service struct {
	store     Store
	deliverer *Deliverer
	engine    *learning.Engine
	weights   *learning.WeightManager
	cfg       Config
	logger    *slog.Logger
}

// NewService creates the escalation service. Deliverer, engine and weights
// are optional collaborators; nil disables delivery or learning side
// effects.
func NewService(log *slog.Logger, store Store, deliverer *Deliverer, engine *learning.Engine, weights *learning.WeightManager, cfg Config) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		deliverer: deliverer,
		engine:    engine,
		weights:   weights,
		cfg:       cfg.withDefaults(),
		logger:    log.With(slog.String("service", "escalation")),
	}
}

// Create registers an escalation for the message. Creation is idempotent on
// message id: a duplicate attempt returns the existing record.
func (s *Service) Create(ctx context.Context, params CreateParams) (Escalation, error) {
	esc, created, err := s.store.Create(ctx, params)
	if err != nil {
		return Escalation{}, fmt.Errorf("create escalation: %w", err)
	}
	if created {
		s.logger.Info("escalation created",
			slog.Int64("id", esc.ID),
			slog.String("channel", esc.Channel.String()),
			slog.String("routing_action", esc.RoutingAction.String()))
	}
	return esc, nil
}

// Get returns the escalation by id.
func (s *Service) Get(ctx context.Context, id int64) (Escalation, error) {
	return s.store.Get(ctx, id)
}

// GetByMessageID returns the escalation owning the message id.
func (s *Service) GetByMessageID(ctx context.Context, messageID string) (Escalation, error) {
	return s.store.GetByMessageID(ctx, messageID)
}

// List returns escalations matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]Escalation, error) {
	return s.store.List(ctx, filter)
}

// CountsByStatus returns per-status totals.
func (s *Service) CountsByStatus(ctx context.Context) (map[Status]int, error) {
	return s.store.CountsByStatus(ctx)
}

// Claim takes exclusive review ownership for staffID. Exactly one of two
// concurrent claims on a pending escalation succeeds; the other gets
// ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, id int64, staffID string) (Escalation, error) {
	ok, err := s.store.Claim(ctx, id, staffID, time.Now().UTC())
	if err != nil {
		return Escalation{}, fmt.Errorf("claim escalation: %w", err)
	}
	if ok {
		return s.store.Get(ctx, id)
	}
	esc, err := s.store.Get(ctx, id)
	if err != nil {
		return Escalation{}, ErrNotFound
	}
	if esc.Status == StatusClosed {
		return Escalation{}, ErrNotFound
	}
	return Escalation{}, ErrAlreadyClaimed
}

// Respond records the staff answer, computes the normalized edit distance
// against the AI draft, triggers delivery and feeds the learning engine.
// Responding is idempotent for the same staff member.
func (s *Service) Respond(ctx context.Context, id int64, answer, staffID string) (Escalation, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return Escalation{}, ErrNotFound
	}
	if snapshot, done, err := s.respondTerminal(current, staffID); done {
		return snapshot, err
	}

	editDistance := NormalizedEditDistance(current.AIDraftAnswer, answer)
	deliveryStatus := DeliveryNotRequired
	if s.deliverer != nil && s.deliverer.RequiresPush(current.Channel) {
		deliveryStatus = DeliveryPending
	}

	ok, err := s.store.Respond(ctx, id, staffID, answer, editDistance, deliveryStatus, time.Now().UTC())
	if err != nil {
		return Escalation{}, fmt.Errorf("respond escalation: %w", err)
	}
	if !ok {
		// Lost the race; dispatch by whatever state won.
		current, err = s.store.Get(ctx, id)
		if err != nil {
			return Escalation{}, ErrNotFound
		}
		if snapshot, done, err := s.respondTerminal(current, staffID); done {
			return snapshot, err
		}
		return Escalation{}, ErrAlreadyClaimed
	}

	esc, err := s.store.Get(ctx, id)
	if err != nil {
		return Escalation{}, err
	}

	if deliveryStatus == DeliveryPending && s.deliverer != nil {
		if s.deliverer.Deliver(ctx, esc) {
			esc, _ = s.store.Get(ctx, id)
		}
	}
	s.recordReview(ctx, esc)
	return esc, nil
}

// respondTerminal resolves respond calls that land on an already-resolved
// escalation: same staff gets the existing snapshot, a different staff gets
// ErrAlreadyClaimed, closed rows without a matching answer are gone.
func (s *Service) respondTerminal(esc Escalation, staffID string) (Escalation, bool, error) {
	switch esc.Status {
	case StatusResponded:
		if esc.StaffID == staffID {
			return esc, true, nil
		}
		return Escalation{}, true, ErrAlreadyClaimed
	case StatusClosed:
		if esc.StaffID == staffID && esc.RespondedAt != nil {
			return esc, true, nil
		}
		return Escalation{}, true, ErrNotFound
	case StatusInReview:
		if esc.StaffID != "" && esc.StaffID != staffID {
			return Escalation{}, true, ErrAlreadyClaimed
		}
	}
	return Escalation{}, false, nil
}

// Close moves the escalation to CLOSED.
func (s *Service) Close(ctx context.Context, id int64) (Escalation, error) {
	ok, err := s.store.Close(ctx, id, time.Now().UTC())
	if err != nil {
		return Escalation{}, fmt.Errorf("close escalation: %w", err)
	}
	if !ok {
		if _, err := s.store.Get(ctx, id); err != nil {
			return Escalation{}, ErrNotFound
		}
	}
	return s.store.Get(ctx, id)
}

// RateStaffAnswer stores the user's 0/1 rating of the staff answer and
// feeds the quadrant signal to the source weight manager.
func (s *Service) RateStaffAnswer(ctx context.Context, messageID string, rating int) (Escalation, error) {
	esc, err := s.store.RateStaffAnswer(ctx, messageID, rating)
	if err != nil {
		return Escalation{}, err
	}
	if s.weights != nil {
		approved := esc.EditDistance != nil && *esc.EditDistance == 0
		quadrant := classifyQuadrant(approved, rating == 1)
		s.weights.ApplyQuadrant(ctx, quadrant, sourceTypes(esc.Sources))
	}
	return esc, nil
}

func classifyQuadrant(approved, helpful bool) learning.Quadrant {
	switch {
	case approved && helpful:
		return learning.QuadrantA
	case approved && !helpful:
		return learning.QuadrantB
	case !approved && helpful:
		return learning.QuadrantC
	default:
		return learning.QuadrantD
	}
}

func (s *Service) recordReview(ctx context.Context, esc Escalation) {
	if s.engine == nil {
		return
	}
	action := learning.AdminEdited
	if esc.EditDistance != nil && *esc.EditDistance == 0 {
		action = learning.AdminApproved
	}
	review := learning.Review{
		QuestionID:    esc.MessageID,
		RaterID:       esc.StaffID,
		Confidence:    esc.Confidence,
		AdminAction:   action,
		RoutingAction: esc.RoutingAction,
		EditDistance:  esc.EditDistance,
		SourceTypes:   sourceTypes(esc.Sources),
	}
	if err := s.engine.RecordReview(ctx, review); err != nil {
		s.logger.Error("record review failed",
			slog.Int64("escalation_id", esc.ID), slog.Any("error", err))
	}
}

// Sweep hooks used by the cron runner.

func (s *Service) ReleaseStaleClaims(ctx context.Context) (int, error) {
	return s.store.ReleaseStaleClaims(ctx, time.Now().UTC().Add(-s.cfg.ClaimTTL))
}

func (s *Service) AutoCloseResponded(ctx context.Context) (int, error) {
	return s.store.AutoClose(ctx, time.Now().UTC().Add(-s.cfg.AutoCloseAfter))
}

func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.PurgeClosed(ctx, time.Now().UTC().Add(-s.cfg.Retention))
}

// RetryDeliveries re-attempts failed or pending deliveries within the retry
// bound.
func (s *Service) RetryDeliveries(ctx context.Context) (int, error) {
	if s.deliverer == nil {
		return 0, nil
	}
	pending, err := s.store.ListUndelivered(ctx, s.cfg.MaxDeliveries, 50)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, esc := range pending {
		if s.deliverer.Deliver(ctx, esc) {
			delivered++
		}
	}
	return delivered, nil
}

// sourceTypes collects the distinct source categories backing the draft.
func sourceTypes(sources []channel.Source) []string {
	seen := map[string]bool{}
	var out []string
	for _, src := range sources {
		if src.Category == "" || seen[src.Category] {
			continue
		}
		seen[src.Category] = true
		out = append(out, src.Category)
	}
	return out
}
