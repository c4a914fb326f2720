package learning

import (
	"context"
	"fmt"
	"testing"
)

func TestThresholdLearning(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine(nil, NewMemoryReviewStore(), 50)
	router := NewRouter(engine)

	before := router.RouteResponse(0.80)

	// 40 approvals at high confidence, 10 rejections at low confidence.
	for i := 0; i < 40; i++ {
		conf := 0.85 + float64(i%15)*0.01
		if err := engine.RecordReview(ctx, Review{
			QuestionID:  fmt.Sprintf("q-ok-%d", i),
			RaterID:     "staff-1",
			Confidence:  conf,
			AdminAction: AdminApproved,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := engine.RecordReview(ctx, Review{
			QuestionID:  fmt.Sprintf("q-bad-%d", i),
			RaterID:     "staff-1",
			Confidence:  0.40,
			AdminAction: AdminRejected,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	published := engine.CurrentThresholds()
	if published == DefaultThresholds() {
		t.Fatal("thresholds not recomputed after 50 reviews")
	}
	if published.High > DefaultHighThreshold {
		t.Fatalf("T_high = %.2f, expected at most the default with a clean approval band", published.High)
	}
	if published.Low <= DefaultLowThreshold {
		t.Fatalf("T_low = %.2f, expected raised above the default by the rejections", published.Low)
	}

	// The router must consult the learned band: same or stricter at 0.80.
	after := router.RouteResponse(0.80)
	if after.Action.Rank() > before.Action.Rank() {
		t.Fatalf("route(0.80) relaxed from %s to %s", before.Action, after.Action)
	}
	// Below the raised T_low the action is now stricter than the default.
	if got := router.RouteResponse(0.75).Action; got != ActionNeedsHuman {
		t.Fatalf("route(0.75) = %s, want needs_human under learned thresholds", got)
	}
	// Above the learned T_high, auto-send.
	if got := router.RouteResponse(0.99).Action; got != ActionAutoSend {
		t.Fatalf("route(0.99) = %s", got)
	}
}

func TestRecordReviewDeduplicatesRater(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryReviewStore()
	engine := NewEngine(nil, store, 50)

	review := Review{QuestionID: "q-1", RaterID: "staff-1", Confidence: 0.9, AdminAction: AdminApproved}
	if err := engine.RecordReview(ctx, review); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := engine.RecordReview(ctx, review); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRecordReviewNotifiesObservers(t *testing.T) {
	engine := NewEngine(nil, NewMemoryReviewStore(), 50)

	var gotQuadrant Quadrant
	var gotSources []string
	engine.Subscribe(func(q Quadrant, sources []string) {
		gotQuadrant = q
		gotSources = sources
	})

	rating := 0
	err := engine.RecordReview(context.Background(), Review{
		QuestionID:  "q-1",
		RaterID:     "staff-1",
		Confidence:  0.9,
		AdminAction: AdminApproved,
		UserRating:  &rating,
		SourceTypes: []string{"faq", "wiki"},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if gotQuadrant != QuadrantB {
		t.Fatalf("quadrant = %s, want B (approved but unhelpful)", gotQuadrant)
	}
	if len(gotSources) != 2 {
		t.Fatalf("sources = %v", gotSources)
	}
}

func TestSeedThresholds(t *testing.T) {
	engine := NewEngine(nil, NewMemoryReviewStore(), 50)

	engine.SeedThresholds(Thresholds{High: 0.90, Low: 0.50})
	if got := engine.CurrentThresholds(); got.High != 0.90 || got.Low != 0.50 {
		t.Fatalf("seeded thresholds = %+v", got)
	}

	// Inverted bands are rejected.
	engine.SeedThresholds(Thresholds{High: 0.40, Low: 0.80})
	if got := engine.CurrentThresholds(); got.High != 0.90 {
		t.Fatalf("invalid seed applied: %+v", got)
	}
}

func TestClassifyQuadrants(t *testing.T) {
	zero := 0.0
	edited := 0.4
	pos, neg := 1, 0

	tests := []struct {
		name   string
		review Review
		want   Quadrant
	}{
		{"approved helpful", Review{AdminAction: AdminApproved, EditDistance: &zero, UserRating: &pos}, QuadrantA},
		{"approved unhelpful", Review{AdminAction: AdminApproved, EditDistance: &zero, UserRating: &neg}, QuadrantB},
		{"edited helpful", Review{AdminAction: AdminEdited, EditDistance: &edited, UserRating: &pos}, QuadrantC},
		{"rejected unhelpful", Review{AdminAction: AdminRejected, UserRating: &neg}, QuadrantD},
		{"no rating defaults helpful", Review{AdminAction: AdminApproved, EditDistance: &zero}, QuadrantA},
	}
	for _, tt := range tests {
		if got := tt.review.Classify(); got != tt.want {
			t.Errorf("%s: quadrant = %s, want %s", tt.name, got, tt.want)
		}
	}
}
