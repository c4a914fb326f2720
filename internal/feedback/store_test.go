package feedback

import (
	"context"
	"testing"

	"github.com/helpgate/helpgate/internal/channel"
)

func TestMemoryStoreUpsertOverwritesRating(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, Record{
		MessageID: "msg-1", Channel: channel.Matrix,
		ReactorID: "@bob:example.org", UserID: "@alice:example.org",
		Rating: RatingNegative, RawReaction: "👎",
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if ok, err := store.AttachFollowUp(ctx, "msg-1", "@bob:example.org", "it was wrong", []string{IssueWrongInformation}); err != nil || !ok {
		t.Fatalf("attach = (%v, %v)", ok, err)
	}

	second, err := store.Upsert(ctx, Record{
		MessageID: "msg-1", Channel: channel.Matrix,
		ReactorID: "@bob:example.org", UserID: "@alice:example.org",
		Rating: RatingPositive, RawReaction: "👍",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("overwrite created a new record: id %d vs %d", second.ID, first.ID)
	}
	if second.Rating != RatingPositive {
		t.Fatalf("rating = %s, want positive", second.Rating)
	}
	if second.Explanation != "it was wrong" {
		t.Fatal("re-rating should preserve follow-up text")
	}
}

func TestMemoryStoreRemove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, Record{MessageID: "msg-1", ReactorID: "r1", Rating: RatingPositive}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if ok, _ := store.Remove(ctx, "msg-1", "r1"); !ok {
		t.Fatal("remove should report true")
	}
	if ok, _ := store.Remove(ctx, "msg-1", "r1"); ok {
		t.Fatal("second remove should report false")
	}
	if _, found, _ := store.Get(ctx, "msg-1", "r1"); found {
		t.Fatal("record still present after remove")
	}
}

func TestMemoryStoreReactorsAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, Record{MessageID: "msg-1", ReactorID: "r1", Rating: RatingPositive}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.Upsert(ctx, Record{MessageID: "msg-1", ReactorID: "r2", Rating: RatingNegative}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := store.ListForMessage(ctx, "msg-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
}
