package learning

import (
	"context"
	"log/slog"
	"math"
	"sync"
)

// Engine records staff review outcomes and recomputes the routing
// thresholds once enough evidence has accumulated. Published thresholds are
// read on every routing call, so updates take effect without restart.
type Engine struct {
	store       ReviewStore
	minReviews  int
	sampleLimit int
	logger      *slog.Logger

	mu        sync.RWMutex
	published Thresholds

	// observers are notified with the quadrant and source types of each
	// newly recorded review (source weight manager).
	observers []func(Quadrant, []string)
}

// NewEngine creates a learning engine over the given review store.
// minReviews gates the first recomputation (default 50).
func NewEngine(log *slog.Logger, store ReviewStore, minReviews int) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if minReviews <= 0 {
		minReviews = 50
	}
	return &Engine{
		store:       store,
		minReviews:  minReviews,
		sampleLimit: 1000,
		logger:      log.With(slog.String("service", "learning")),
		published:   DefaultThresholds(),
	}
}

// SeedThresholds overrides the pre-learning cut points. The first
// recomputation replaces them. Invalid bands (low >= high) are ignored.
func (e *Engine) SeedThresholds(t Thresholds) {
	if t.High <= 0 || t.Low <= 0 || t.Low >= t.High {
		return
	}
	e.mu.Lock()
	e.published = t
	e.mu.Unlock()
}

// CurrentThresholds implements ThresholdProvider.
func (e *Engine) CurrentThresholds() Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published
}

// Subscribe registers an observer called for every newly recorded review.
func (e *Engine) Subscribe(fn func(Quadrant, []string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// RecordReview stores one staff decision. Duplicate (question, rater) pairs
// are ignored. When the store holds at least minReviews records the
// thresholds are recomputed and published.
func (e *Engine) RecordReview(ctx context.Context, review Review) error {
	inserted, err := e.store.Insert(ctx, review)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	e.mu.RLock()
	observers := make([]func(Quadrant, []string), len(e.observers))
	copy(observers, e.observers)
	e.mu.RUnlock()
	quadrant := review.Classify()
	for _, fn := range observers {
		fn(quadrant, review.SourceTypes)
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		return err
	}
	if count < e.minReviews {
		return nil
	}
	return e.Recompute(ctx)
}

// Recompute derives thresholds from the empirical review distribution and
// publishes them atomically.
func (e *Engine) Recompute(ctx context.Context) error {
	reviews, err := e.store.Recent(ctx, e.sampleLimit)
	if err != nil {
		return err
	}
	if len(reviews) < e.minReviews {
		return nil
	}

	next := computeThresholds(reviews)
	e.mu.Lock()
	prev := e.published
	e.published = next
	e.mu.Unlock()

	if prev != next {
		e.logger.Info("routing thresholds updated",
			slog.Float64("high", next.High),
			slog.Float64("low", next.Low),
			slog.Int("reviews", len(reviews)))
	}
	return nil
}

// computeThresholds scans a confidence grid. T_high is the lowest cut where
// the weighted approval rate at or above it stays >= 95%; T_low is the
// highest cut (capped below T_high) where the weighted rejection rate below
// it reaches >= 50%. Without enough evidence a bound keeps its default.
func computeThresholds(reviews []Review) Thresholds {
	t := DefaultThresholds()

	high := t.High
	for c := 0.85; c <= 0.99+1e-9; c += 0.01 {
		var approved, total float64
		for _, r := range reviews {
			if r.Confidence < c {
				continue
			}
			w := r.Weight()
			total += w
			if r.AdminAction == AdminApproved {
				approved += w
			}
		}
		if total > 0 && approved/total >= 0.95 {
			high = round2(c)
			break
		}
	}

	low := t.Low
	lowCap := high - 0.05
	best := math.NaN()
	for c := 0.50; c <= lowCap+1e-9; c += 0.01 {
		var rejected, total float64
		for _, r := range reviews {
			if r.Confidence >= c {
				continue
			}
			w := r.Weight()
			total += w
			if r.AdminAction == AdminRejected {
				rejected += w
			}
		}
		if total > 0 && rejected/total >= 0.50 {
			best = c
		}
	}
	if !math.IsNaN(best) {
		low = round2(best)
	}
	if low > lowCap {
		low = round2(lowCap)
	}

	return Thresholds{High: high, Low: low}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
