package learning

import (
	"context"
	"log/slog"
	"math"
	"sync"
)

// Source weight bounds and update tuning.
const (
	WeightFloor   = 0.75
	WeightCeiling = 1.25

	quadrantLearningRate = 0.02
	maxWeightDelta       = 0.10

	batchColdStartRate  = 0.1
	batchWarmRate       = 0.3
	batchColdStartTotal = 100
	batchMinSamples     = 10
)

// quadrantDeltas are the per-source nudges for each review quadrant,
// expressed at the default learning rate.
var quadrantDeltas = map[Quadrant]float64{
	QuadrantA: +0.05,
	QuadrantB: -0.10,
	QuadrantC: 0,
	QuadrantD: -0.10,
}

// RatingStats are positive/total counts for one source type.
type RatingStats struct {
	Positive int
	Total    int
}

// WeightStore persists per-source-type weights.
type WeightStore interface {
	GetAll(ctx context.Context) (map[string]float64, error)
	Upsert(ctx context.Context, sourceType string, weight float64) error
}

// WeightManager maintains a weight per source type in [0.75, 1.25],
// nudged by review quadrants and recalibrated by batched user feedback
// through a Wilson lower bound.
type WeightManager struct {
	store  WeightStore
	logger *slog.Logger

	mu      sync.Mutex
	weights map[string]float64
	loaded  bool
}

// NewWeightManager creates a weight manager over the given store.
func NewWeightManager(log *slog.Logger, store WeightStore) *WeightManager {
	if log == nil {
		log = slog.Default()
	}
	return &WeightManager{
		store:   store,
		logger:  log.With(slog.String("service", "source-weights")),
		weights: map[string]float64{},
	}
}

// Weight returns the current weight for sourceType (1.0 when unknown).
func (m *WeightManager) Weight(ctx context.Context, sourceType string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return 1.0
	}
	if w, ok := m.weights[sourceType]; ok {
		return w
	}
	return 1.0
}

// Weights returns a copy of all known weights.
func (m *WeightManager) Weights(ctx context.Context) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.ensureLoadedLocked(ctx)
	out := make(map[string]float64, len(m.weights))
	for k, v := range m.weights {
		out[k] = v
	}
	return out
}

// ApplyQuadrant nudges the named source types according to the review
// quadrant. The circuit breaker rejects any single update larger than
// maxWeightDelta.
func (m *WeightManager) ApplyQuadrant(ctx context.Context, quadrant Quadrant, sourceTypes []string) {
	delta := quadrantDeltas[quadrant] * (quadrantLearningRate / 0.02)
	if delta == 0 || len(sourceTypes) == 0 {
		return
	}
	if math.Abs(delta) > maxWeightDelta {
		m.logger.Warn("weight delta rejected by circuit breaker",
			slog.String("quadrant", string(quadrant)),
			slog.Float64("delta", delta))
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return
	}
	for _, src := range sourceTypes {
		m.setLocked(ctx, src, m.currentLocked(src)+delta)
	}
}

// ApplyBatch recalibrates weights from time-windowed rating counts. The
// Wilson lower bound maps onto [WeightFloor, WeightCeiling]; the learning
// rate is cold-start aware. Sources with fewer than batchMinSamples are
// skipped.
func (m *WeightManager) ApplyBatch(ctx context.Context, stats map[string]RatingStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ensureLoadedLocked(ctx); err != nil {
		return
	}
	for src, s := range stats {
		if s.Total < batchMinSamples {
			continue
		}
		target := WeightFloor + WilsonLowerBound(s.Positive, s.Total)*(WeightCeiling-WeightFloor)
		rate := batchWarmRate
		if s.Total <= batchColdStartTotal {
			rate = batchColdStartRate
		}
		current := m.currentLocked(src)
		m.setLocked(ctx, src, current+rate*(target-current))
	}
}

func (m *WeightManager) currentLocked(sourceType string) float64 {
	if w, ok := m.weights[sourceType]; ok {
		return w
	}
	return 1.0
}

func (m *WeightManager) setLocked(ctx context.Context, sourceType string, weight float64) {
	weight = math.Min(WeightCeiling, math.Max(WeightFloor, weight))
	m.weights[sourceType] = weight
	if m.store != nil {
		if err := m.store.Upsert(ctx, sourceType, weight); err != nil {
			m.logger.Error("persist source weight failed",
				slog.String("source_type", sourceType), slog.Any("error", err))
		}
	}
}

func (m *WeightManager) ensureLoadedLocked(ctx context.Context) error {
	if m.loaded || m.store == nil {
		m.loaded = true
		return nil
	}
	stored, err := m.store.GetAll(ctx)
	if err != nil {
		m.logger.Error("load source weights failed", slog.Any("error", err))
		return err
	}
	for k, v := range stored {
		m.weights[k] = v
	}
	m.loaded = true
	return nil
}
