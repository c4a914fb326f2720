package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/coordination"
)

type promptAdapter struct {
	sent []channel.OutgoingMessage
}

func (a *promptAdapter) ChannelID() channel.ID { return channel.Matrix }
func (a *promptAdapter) Capabilities() channel.Capabilities {
	return channel.NewCapabilities(channel.CapSendResponses)
}
func (a *promptAdapter) Start(context.Context) error { return nil }
func (a *promptAdapter) Stop(context.Context) error  { return nil }
func (a *promptAdapter) HealthCheck(context.Context) channel.HealthStatus {
	return channel.HealthStatus{State: channel.HealthHealthy}
}
func (a *promptAdapter) SendMessage(_ context.Context, _ string, msg channel.OutgoingMessage) (string, error) {
	a.sent = append(a.sent, msg)
	return "", nil
}
func (a *promptAdapter) DeliveryTarget(metadata map[string]string) string {
	return metadata["room_id"]
}
func (a *promptAdapter) FormatEscalationMessage(string, int64, string) string { return "" }

func newFollowUpFixture(t *testing.T) (*Coordinator, *MemoryStore, *promptAdapter, coordination.Store) {
	t.Helper()
	coord := coordination.NewMemoryStore()
	t.Cleanup(coord.Close)
	store := NewMemoryStore()
	adapter := &promptAdapter{}
	registry := channel.NewRegistry(nil)
	if err := registry.Register(adapter); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewCoordinator(nil, coord, store, registry, time.Minute), store, adapter, coord
}

func negativeRecord(t *testing.T, store *MemoryStore) Record {
	t.Helper()
	record, err := store.Upsert(context.Background(), Record{
		MessageID: "msg-1", Channel: channel.Matrix,
		ReactorID: "@alice:example.org", UserID: "@alice:example.org",
		Rating: RatingNegative,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return record
}

func TestFollowUpRoundTrip(t *testing.T) {
	coordinator, store, adapter, _ := newFollowUpFixture(t)
	ctx := context.Background()
	record := negativeRecord(t, store)

	if !coordinator.Begin(ctx, record, "!room:example.org", "en") {
		t.Fatal("begin should succeed")
	}
	if len(adapter.sent) != 1 {
		t.Fatalf("prompt not sent, got %d messages", len(adapter.sent))
	}

	consumed := coordinator.ConsumeIfPending(ctx, channel.IncomingMessage{
		MessageID: "msg-2",
		Channel:   channel.Matrix,
		Question:  "The answer was wrong and outdated.",
		User:      channel.UserRef{UserID: "@alice:example.org"},
		ChannelMetadata: map[string]string{
			"room_id": "!room:example.org",
		},
	})
	if !consumed {
		t.Fatal("reply should be consumed by the pending follow-up")
	}

	got, found, _ := store.Get(ctx, "msg-1", "@alice:example.org")
	if !found {
		t.Fatal("feedback record missing")
	}
	if got.Explanation != "The answer was wrong and outdated." {
		t.Fatalf("explanation = %q", got.Explanation)
	}
	if len(got.Issues) != 2 {
		t.Fatalf("issues = %v, want wrong_information and outdated_information", got.Issues)
	}
	if len(adapter.sent) != 2 {
		t.Fatalf("acknowledgement not sent, got %d messages", len(adapter.sent))
	}

	// The pending entry is single-use.
	again := coordinator.ConsumeIfPending(ctx, channel.IncomingMessage{
		Channel:  channel.Matrix,
		Question: "And another thing.",
		User:     channel.UserRef{UserID: "@alice:example.org"},
	})
	if again {
		t.Fatal("second message should flow through the regular pipeline")
	}
}

func TestConsumeIfPendingNoEntry(t *testing.T) {
	coordinator, _, _, _ := newFollowUpFixture(t)
	consumed := coordinator.ConsumeIfPending(context.Background(), channel.IncomingMessage{
		Channel:  channel.Matrix,
		Question: "Just a normal question.",
		User:     channel.UserRef{UserID: "@carol:example.org"},
	})
	if consumed {
		t.Fatal("message without pending follow-up must not be consumed")
	}
}

func TestFollowUpIsPerUserAndChannel(t *testing.T) {
	coordinator, store, _, _ := newFollowUpFixture(t)
	ctx := context.Background()
	record := negativeRecord(t, store)

	if !coordinator.Begin(ctx, record, "!room:example.org", "en") {
		t.Fatal("begin should succeed")
	}

	// Same user, different channel: not consumed.
	if coordinator.ConsumeIfPending(ctx, channel.IncomingMessage{
		Channel:  channel.Web,
		Question: "hello",
		User:     channel.UserRef{UserID: "@alice:example.org"},
	}) {
		t.Fatal("different channel must not consume the pending entry")
	}

	// Different user, same channel: not consumed.
	if coordinator.ConsumeIfPending(ctx, channel.IncomingMessage{
		Channel:  channel.Matrix,
		Question: "hello",
		User:     channel.UserRef{UserID: "@bob:example.org"},
	}) {
		t.Fatal("different user must not consume the pending entry")
	}
}

func TestFollowUpExpires(t *testing.T) {
	coord := coordination.NewMemoryStore()
	t.Cleanup(coord.Close)
	store := NewMemoryStore()
	coordinator := NewCoordinator(nil, coord, store, channel.NewRegistry(nil), 10*time.Millisecond)
	ctx := context.Background()
	record := negativeRecord(t, store)

	if !coordinator.Begin(ctx, record, "", "en") {
		t.Fatal("begin should succeed")
	}
	time.Sleep(20 * time.Millisecond)

	if coordinator.ConsumeIfPending(ctx, channel.IncomingMessage{
		Channel:  channel.Matrix,
		Question: "too late",
		User:     channel.UserRef{UserID: "@alice:example.org"},
	}) {
		t.Fatal("expired follow-up must not consume the message")
	}
}
