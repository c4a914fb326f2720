package coordination

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	t.Cleanup(s.Close)
	return s
}

func TestReserveDedupOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := DedupKey("web", "msg-1")
	ok, err := s.ReserveDedup(ctx, key, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first reservation: ok=%v err=%v", ok, err)
	}
	ok, err = s.ReserveDedup(ctx, key, time.Minute)
	if err != nil || ok {
		t.Fatalf("second reservation must fail: ok=%v err=%v", ok, err)
	}
}

func TestReserveDedupExpires(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := DedupKey("web", "msg-1")
	if ok, _ := s.ReserveDedup(ctx, key, 10*time.Millisecond); !ok {
		t.Fatal("first reservation failed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := s.ReserveDedup(ctx, key, time.Minute); !ok {
		t.Fatal("reservation after expiry must succeed")
	}
}

func TestLockContention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := ThreadLockKey("matrix", "!room:example.org")
	token, err := s.AcquireLock(ctx, key, time.Minute)
	if err != nil || token == "" {
		t.Fatalf("acquire: token=%q err=%v", token, err)
	}
	contended, err := s.AcquireLock(ctx, key, time.Minute)
	if err != nil || contended != "" {
		t.Fatalf("second acquire must be contended: token=%q err=%v", contended, err)
	}

	if ok, _ := s.ReleaseLock(ctx, key, "wrong-token"); ok {
		t.Fatal("release with a foreign token must fail")
	}
	if ok, _ := s.ReleaseLock(ctx, key, token); !ok {
		t.Fatal("release with the holder token must succeed")
	}
	if again, _ := s.AcquireLock(ctx, key, time.Minute); again == "" {
		t.Fatal("lock must be free after release")
	}
}

func TestExpiredOwnerCannotRelease(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := ThreadLockKey("web", "s-1")
	stale, _ := s.AcquireLock(ctx, key, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	fresh, _ := s.AcquireLock(ctx, key, time.Minute)
	if fresh == "" {
		t.Fatal("expired lock must be acquirable")
	}
	if ok, _ := s.ReleaseLock(ctx, key, stale); ok {
		t.Fatal("stale token must not release the re-acquired lock")
	}
	if ok, _ := s.ReleaseLock(ctx, key, fresh); !ok {
		t.Fatal("fresh token must release")
	}
}

func TestConcurrentDedupSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := DedupKey("tradeapp", "tm-1")
	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := s.ReserveDedup(ctx, key, time.Minute)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := ThreadStateKey("web", "s-1")
	if err := s.SetState(ctx, key, "awaiting_feedback_reason", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.GetState(ctx, key)
	if err != nil || !ok || value != "awaiting_feedback_reason" {
		t.Fatalf("get = %q ok=%v err=%v", value, ok, err)
	}
	if err := s.DeleteState(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetState(ctx, key); ok {
		t.Fatal("state must be gone after delete")
	}
}

func TestKeyFormats(t *testing.T) {
	if got := DedupKey("web", "m1"); got != "dedup:web:m1" {
		t.Fatalf("dedup key = %q", got)
	}
	if got := ThreadLockKey("matrix", "r1"); got != "thread-lock:matrix:r1" {
		t.Fatalf("lock key = %q", got)
	}
	if got := ThreadStateKey("web", "s1"); got != "thread:web:s1" {
		t.Fatalf("state key = %q", got)
	}
}
