package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

type fakeHomeserver struct {
	mu      sync.Mutex
	batches []string // JSON sync payloads served in order
	served  int
	sends   []string // bodies of room sends
}

func (f *fakeHomeserver) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_matrix/client/v3/sync", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.served < len(f.batches) {
			w.Write([]byte(f.batches[f.served]))
			f.served++
			return
		}
		// Nothing new; stall briefly like a real long poll.
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte(`{"next_batch":"end"}`))
	})
	mux.HandleFunc("PUT /_matrix/client/v3/rooms/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Body string `json:"body"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.sends = append(f.sends, body.Body)
		f.mu.Unlock()
		w.Write([]byte(`{"event_id":"$sent"}`))
	})
	mux.HandleFunc("GET /_matrix/client/v3/account/whoami", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_id":"@bot:example.org"}`))
	})
	return mux
}

func timelineBatch(next string, events string) string {
	return `{"next_batch":"` + next + `","rooms":{"join":{"!room:example.org":{"timeline":{"events":[` + events + `]}}}}}`
}

func newTestAdapter(t *testing.T, hs *fakeHomeserver) *Adapter {
	t.Helper()
	srv := httptest.NewServer(hs.handler())
	t.Cleanup(srv.Close)
	return New(nil, Config{
		HomeserverURL: srv.URL,
		UserID:        "@bot:example.org",
		AccessToken:   "tok",
		SyncTimeout:   50 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSyncLoopForwardsMessages(t *testing.T) {
	hs := &fakeHomeserver{batches: []string{
		// First sync establishes the since token; its events must be skipped.
		timelineBatch("s1", `{"type":"m.room.message","event_id":"$old","sender":"@alice:example.org","content":{"msgtype":"m.text","body":"old backlog"}}`),
		timelineBatch("s2", `{"type":"m.room.message","event_id":"$new","sender":"@alice:example.org","content":{"msgtype":"m.text","body":"Where is my order?"}}`),
	}}
	a := newTestAdapter(t, hs)

	var mu sync.Mutex
	var got []channel.IncomingMessage
	a.SetInbound(func(_ context.Context, msg channel.IncomingMessage) bool {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		return true
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, "inbound message")

	mu.Lock()
	defer mu.Unlock()
	msg := got[0]
	if msg.MessageID != "$new" || msg.Question != "Where is my order?" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.ChannelMetadata["room_id"] != "!room:example.org" {
		t.Fatalf("room = %q", msg.ChannelMetadata["room_id"])
	}
}

func TestOwnMessagesIgnored(t *testing.T) {
	hs := &fakeHomeserver{batches: []string{
		timelineBatch("s1", ``),
		timelineBatch("s2", `{"type":"m.room.message","event_id":"$self","sender":"@bot:example.org","content":{"msgtype":"m.text","body":"echo"}}`),
	}}
	a := newTestAdapter(t, hs)

	called := false
	a.SetInbound(func(context.Context, channel.IncomingMessage) bool {
		called = true
		return true
	})
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	waitFor(t, func() bool {
		hs.mu.Lock()
		defer hs.mu.Unlock()
		return hs.served >= 2
	}, "both batches served")
	if called {
		t.Fatal("own messages must not enter the pipeline")
	}
}

func TestReactionAndRedaction(t *testing.T) {
	hs := &fakeHomeserver{batches: []string{
		timelineBatch("s1", ``),
		timelineBatch("s2", `{"type":"m.reaction","event_id":"$react","sender":"@alice:example.org","content":{"m.relates_to":{"rel_type":"m.annotation","event_id":"$answer","key":"👍"}}}`),
		timelineBatch("s3", `{"type":"m.room.redaction","event_id":"$redact","sender":"@alice:example.org","redacts":"$react"}`),
	}}
	a := newTestAdapter(t, hs)

	var mu sync.Mutex
	var reacted, revoked []string
	a.SetReaction(ReactionFunc{
		React: func(_ context.Context, messageID, reactorID, key string) {
			mu.Lock()
			defer mu.Unlock()
			reacted = append(reacted, messageID+"/"+reactorID+"/"+key)
		},
		Revoke: func(_ context.Context, messageID, reactorID string) {
			mu.Lock()
			defer mu.Unlock()
			revoked = append(revoked, messageID+"/"+reactorID)
		},
	})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.Stop(context.Background())

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reacted) == 1 && len(revoked) == 1
	}, "reaction and redaction")

	mu.Lock()
	defer mu.Unlock()
	if reacted[0] != "$answer/@alice:example.org/👍" {
		t.Fatalf("reaction = %q", reacted[0])
	}
	if revoked[0] != "$answer/@alice:example.org" {
		t.Fatalf("revocation = %q", revoked[0])
	}
}

func TestSendMessage(t *testing.T) {
	hs := &fakeHomeserver{}
	a := newTestAdapter(t, hs)

	eventID, err := a.SendMessage(context.Background(), "!room:example.org", channel.OutgoingMessage{
		Answer: "Here is your answer.",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if eventID != "$sent" {
		t.Fatalf("event id = %q, want the homeserver-assigned id", eventID)
	}
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if len(hs.sends) != 1 || hs.sends[0] != "Here is your answer." {
		t.Fatalf("sends = %v", hs.sends)
	}
}

func TestStartRequiresCredentials(t *testing.T) {
	a := New(nil, Config{})
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("start without credentials must fail")
	}
}
