package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helpgate/helpgate/internal/answer"
	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/coordination"
	"github.com/helpgate/helpgate/internal/feedback"
	"github.com/helpgate/helpgate/internal/gateway"
	"github.com/helpgate/helpgate/internal/reaction"
	"github.com/helpgate/helpgate/internal/tracker"
)

type slowAnswerService struct {
	delay   time.Duration
	active  atomic.Int32
	overlap atomic.Bool
	calls   atomic.Int32
}

func (s *slowAnswerService) Query(ctx context.Context, question string, _ []channel.ChatTurn) (answer.Response, error) {
	s.calls.Add(1)
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.active.Add(-1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	conf := 0.99
	return answer.Response{Answer: "answer to " + question, ConfidenceScore: &conf}, nil
}

type sinkAdapter struct {
	mu     sync.Mutex
	sent   []channel.OutgoingMessage
	sentID string // transport-assigned id returned by SendMessage, "" for none
}

func (a *sinkAdapter) ChannelID() channel.ID { return channel.Matrix }
func (a *sinkAdapter) Capabilities() channel.Capabilities {
	return channel.NewCapabilities(channel.CapReceiveMessages, channel.CapSendResponses)
}
func (a *sinkAdapter) Start(context.Context) error { return nil }
func (a *sinkAdapter) Stop(context.Context) error  { return nil }
func (a *sinkAdapter) HealthCheck(context.Context) channel.HealthStatus {
	return channel.HealthStatus{State: channel.HealthHealthy}
}
func (a *sinkAdapter) SendMessage(_ context.Context, _ string, msg channel.OutgoingMessage) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, msg)
	return a.sentID, nil
}
func (a *sinkAdapter) DeliveryTarget(metadata map[string]string) string {
	return metadata["room_id"]
}
func (a *sinkAdapter) FormatEscalationMessage(string, int64, string) string { return "escalated" }

type fixture struct {
	orch    *Orchestrator
	answers *slowAnswerService
	adapter *sinkAdapter
	tracker *tracker.Tracker
	coord   coordination.Store
}

func newFixture(t *testing.T, answerDelay time.Duration, followUp *feedback.Coordinator) *fixture {
	t.Helper()
	answers := &slowAnswerService{delay: answerDelay}
	gw := gateway.New(nil, answers, nil, nil, 0)
	registry := channel.NewRegistry(nil)
	adapter := &sinkAdapter{}
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}
	trk := tracker.New(time.Hour)
	coord := coordination.NewMemoryStore()
	t.Cleanup(coord.Close)
	dispatcher := NewDispatcher(nil, registry, trk, time.Second)
	orch := New(nil, gw, dispatcher, coord, followUp, TTLConfig{})
	return &fixture{orch: orch, answers: answers, adapter: adapter, tracker: trk, coord: coord}
}

func inboundMessage(eventID, threadID string) channel.IncomingMessage {
	return channel.IncomingMessage{
		MessageID: eventID,
		Channel:   channel.Matrix,
		Question:  "How do I reset my password?",
		User:      channel.UserRef{UserID: "@alice:example.org"},
		ChannelMetadata: map[string]string{
			"room_id": threadID,
		},
	}
}

func TestProcessIncomingDispatches(t *testing.T) {
	f := newFixture(t, 0, nil)

	if !f.orch.ProcessIncoming(context.Background(), inboundMessage("evt-1", "!room")) {
		t.Fatal("process should dispatch")
	}
	if len(f.adapter.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(f.adapter.sent))
	}
	out := f.adapter.sent[0]
	if _, ok := f.tracker.Lookup(channel.Matrix, out.MessageID); !ok {
		t.Fatal("dispatched turn should be tracked")
	}
}

func TestDedupUnderContention(t *testing.T) {
	f := newFixture(t, 5*time.Millisecond, nil)

	// Same canonical event submitted in parallel: distinct thread ids so
	// only dedup, not the thread lock, decides the winner.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	threads := []string{"!room-a", "!room-b"}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := inboundMessage("evt-dup", threads[i])
			results[i] = f.orch.ProcessIncoming(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	if results[0] == results[1] {
		t.Fatalf("exactly one of the duplicate events must win, got %v", results)
	}
	if f.tracker.Len() != 1 {
		t.Fatalf("tracked records = %d, want 1", f.tracker.Len())
	}
}

func TestThreadLockSerializesSameThread(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := inboundMessage("evt-"+string(rune('a'+i)), "!same-room")
			f.orch.ProcessIncoming(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	if f.answers.overlap.Load() {
		t.Fatal("answer-service calls for the same thread overlapped")
	}
}

func TestCrossThreadEventsRunInParallel(t *testing.T) {
	f := newFixture(t, 10*time.Millisecond, nil)

	var wg sync.WaitGroup
	results := make([]bool, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := inboundMessage("evt-"+string(rune('a'+i)), "!room-"+string(rune('a'+i)))
			results[i] = f.orch.ProcessIncoming(context.Background(), msg)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		if !ok {
			t.Fatalf("event %d on its own thread should dispatch", i)
		}
	}
}

func TestNilCoordinationStoreDegrades(t *testing.T) {
	answers := &slowAnswerService{}
	gw := gateway.New(nil, answers, nil, nil, 0)
	registry := channel.NewRegistry(nil)
	adapter := &sinkAdapter{}
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispatcher := NewDispatcher(nil, registry, tracker.New(time.Hour), time.Second)
	orch := New(nil, gw, dispatcher, nil, nil, TTLConfig{})

	// Without a store there is no dedup; both submissions process.
	for i := 0; i < 2; i++ {
		if !orch.ProcessIncoming(context.Background(), inboundMessage("evt-1", "!room")) {
			t.Fatalf("submission %d should dispatch without coordination", i)
		}
	}
}

func TestFollowUpConsumesBeforeDedup(t *testing.T) {
	coord := coordination.NewMemoryStore()
	t.Cleanup(coord.Close)
	store := feedback.NewMemoryStore()
	followUp := feedback.NewCoordinator(nil, coord, store, channel.NewRegistry(nil), time.Minute)

	record, err := store.Upsert(context.Background(), feedback.Record{
		MessageID: "msg-9", Channel: channel.Matrix,
		ReactorID: "@alice:example.org", UserID: "@alice:example.org",
		Rating: feedback.RatingNegative,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !followUp.Begin(context.Background(), record, "", "en") {
		t.Fatal("begin follow-up")
	}

	f := newFixture(t, 0, followUp)
	// Hand the fixture the same coordination store holding the pending entry.
	f.orch.coord = coord
	f.orch.followUp = followUp

	msg := inboundMessage("evt-1", "!room")
	msg.Question = "the answer was incomplete"
	if !f.orch.ProcessIncoming(context.Background(), msg) {
		t.Fatal("follow-up reply should be consumed")
	}
	if f.answers.calls.Load() != 0 {
		t.Fatal("regular pipeline must not run for a consumed follow-up")
	}

	got, found, _ := store.Get(context.Background(), "msg-9", "@alice:example.org")
	if !found || got.Explanation == "" || len(got.Issues) == 0 {
		t.Fatalf("follow-up not attached: %+v", got)
	}
}

func TestDispatchTracksTransportMessageID(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.adapter.sentID = "$ev1:example.org"

	if !f.orch.ProcessIncoming(context.Background(), inboundMessage("evt-1", "!room")) {
		t.Fatal("process should dispatch")
	}
	out := f.adapter.sent[0]
	if _, ok := f.tracker.Lookup(channel.Matrix, out.MessageID); ok {
		t.Fatal("tracked under our id, reactions carry the transport id")
	}
	rec, ok := f.tracker.Lookup(channel.Matrix, "$ev1:example.org")
	if !ok {
		t.Fatal("sent message must be tracked under the transport id")
	}
	if rec.InternalMessageID != out.MessageID {
		t.Fatalf("internal id = %q, want %q", rec.InternalMessageID, out.MessageID)
	}

	// A reaction referencing the transport id resolves the sent message.
	store := feedback.NewMemoryStore()
	followUp := feedback.NewCoordinator(nil, f.coord, store, channel.NewRegistry(nil), time.Minute)
	p := reaction.NewProcessor(nil, f.tracker, store, followUp)
	result := p.Process(context.Background(), reaction.Event{
		Channel:           channel.Matrix,
		ExternalMessageID: "$ev1:example.org",
		ReactorID:         "@bob:example.org",
		RawReaction:       "👍",
	})
	if !result.Processed {
		t.Fatal("reaction on the transport id must resolve the sent message")
	}
}
