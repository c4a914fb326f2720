package tracker

import (
	"testing"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

func TestTrackAndLookup(t *testing.T) {
	trk := New(time.Hour)
	trk.Track(channel.Web, "ext-1", Record{
		InternalMessageID: "msg-1",
		Question:          "How do I reset my password?",
		Answer:            "Use the reset link on the login page.",
		UserID:            "u-1",
	})

	rec, ok := trk.Lookup(channel.Web, "ext-1")
	if !ok || rec.InternalMessageID != "msg-1" {
		t.Fatalf("lookup = %+v ok=%v", rec, ok)
	}
	if _, ok := trk.Lookup(channel.Matrix, "ext-1"); ok {
		t.Fatal("records are keyed per channel")
	}
	if _, ok := trk.Lookup(channel.Web, "ext-2"); ok {
		t.Fatal("unknown external id must miss")
	}
}

func TestLookupEvictsExpired(t *testing.T) {
	trk := New(10 * time.Millisecond)
	trk.Track(channel.Web, "ext-1", Record{InternalMessageID: "msg-1"})

	time.Sleep(20 * time.Millisecond)
	if _, ok := trk.Lookup(channel.Web, "ext-1"); ok {
		t.Fatal("expired record must not resolve")
	}
	if trk.Len() != 0 {
		t.Fatalf("len = %d after lazy eviction", trk.Len())
	}
}

func TestSweepExpired(t *testing.T) {
	trk := New(10 * time.Millisecond)
	trk.Track(channel.Web, "ext-1", Record{})
	trk.Track(channel.Web, "ext-2", Record{})
	time.Sleep(20 * time.Millisecond)
	trk.Track(channel.Web, "ext-3", Record{})

	if n := trk.SweepExpired(); n != 2 {
		t.Fatalf("swept = %d, want 2", n)
	}
	if trk.Len() != 1 {
		t.Fatalf("len = %d, want 1", trk.Len())
	}
}

func TestRemove(t *testing.T) {
	trk := New(time.Hour)
	trk.Track(channel.Web, "ext-1", Record{})
	trk.Remove(channel.Web, "ext-1")
	if _, ok := trk.Lookup(channel.Web, "ext-1"); ok {
		t.Fatal("removed record must miss")
	}
}

func TestTrackOverwrites(t *testing.T) {
	trk := New(time.Hour)
	trk.Track(channel.Web, "ext-1", Record{Answer: "first"})
	trk.Track(channel.Web, "ext-1", Record{Answer: "second"})

	rec, _ := trk.Lookup(channel.Web, "ext-1")
	if rec.Answer != "second" {
		t.Fatalf("answer = %q", rec.Answer)
	}
	if trk.Len() != 1 {
		t.Fatalf("len = %d", trk.Len())
	}
}
