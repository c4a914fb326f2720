package learning

import (
	"context"
	"math"
	"testing"
)

func TestWeightDefaultsToNeutral(t *testing.T) {
	m := NewWeightManager(nil, NewMemoryWeightStore())
	if w := m.Weight(context.Background(), "faq"); w != 1.0 {
		t.Fatalf("weight = %v, want 1.0", w)
	}
}

func TestApplyQuadrantNudges(t *testing.T) {
	ctx := context.Background()
	m := NewWeightManager(nil, NewMemoryWeightStore())

	m.ApplyQuadrant(ctx, QuadrantA, []string{"faq"})
	if w := m.Weight(ctx, "faq"); math.Abs(w-1.05) > 1e-9 {
		t.Fatalf("weight after A = %v, want 1.05", w)
	}

	m.ApplyQuadrant(ctx, QuadrantC, []string{"faq"})
	if w := m.Weight(ctx, "faq"); math.Abs(w-1.05) > 1e-9 {
		t.Fatalf("quadrant C must not move the weight, got %v", w)
	}

	// Repeated unhelpful outcomes clamp at the floor.
	for i := 0; i < 10; i++ {
		m.ApplyQuadrant(ctx, QuadrantD, []string{"faq"})
	}
	if w := m.Weight(ctx, "faq"); w != WeightFloor {
		t.Fatalf("weight = %v, want floor %v", w, WeightFloor)
	}
}

func TestApplyQuadrantPersists(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryWeightStore()
	m := NewWeightManager(nil, store)

	m.ApplyQuadrant(ctx, QuadrantA, []string{"wiki"})

	stored, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if math.Abs(stored["wiki"]-1.05) > 1e-9 {
		t.Fatalf("persisted weight = %v", stored["wiki"])
	}
}

func TestApplyBatch(t *testing.T) {
	ctx := context.Background()
	m := NewWeightManager(nil, NewMemoryWeightStore())

	m.ApplyBatch(ctx, map[string]RatingStats{
		"good":   {Positive: 195, Total: 200},
		"bad":    {Positive: 0, Total: 50},
		"sparse": {Positive: 5, Total: 5},
	})

	if w := m.Weight(ctx, "good"); w <= 1.0 || w > WeightCeiling {
		t.Fatalf("well-rated source weight = %v", w)
	}
	if w := m.Weight(ctx, "bad"); w >= 1.0 || w < WeightFloor {
		t.Fatalf("badly-rated source weight = %v", w)
	}
	if w := m.Weight(ctx, "sparse"); w != 1.0 {
		t.Fatalf("source below the sample minimum moved to %v", w)
	}
}

func TestWilsonLowerBound(t *testing.T) {
	if got := WilsonLowerBound(0, 0); got != 0 {
		t.Fatalf("empty sample = %v", got)
	}
	if got := WilsonLowerBound(0, 50); got != 0 {
		t.Fatalf("all-negative sample = %v", got)
	}

	small := WilsonLowerBound(8, 10)
	large := WilsonLowerBound(80, 100)
	if small >= large {
		t.Fatalf("larger samples must tighten the bound: %v >= %v", small, large)
	}
	if large >= 0.8 {
		t.Fatalf("lower bound %v must sit below the observed proportion", large)
	}
}
