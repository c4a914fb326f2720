package web

import (
	"context"
	"testing"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

func TestSessionRoundTrip(t *testing.T) {
	a := New(nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	inbox, release := a.OpenSession("sess-1")
	defer release()

	msg := channel.OutgoingMessage{MessageID: "m-1", Answer: "Here you go."}
	if _, err := a.SendMessage(context.Background(), "sess-1", msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-inbox:
		if got.MessageID != "m-1" {
			t.Fatalf("message id = %q", got.MessageID)
		}
	case <-time.After(time.Second):
		t.Fatal("no message on session inbox")
	}
}

func TestSendToUnknownSessionFails(t *testing.T) {
	a := New(nil)
	if _, err := a.SendMessage(context.Background(), "gone", channel.OutgoingMessage{}); err == nil {
		t.Fatal("send to an unopened session should fail")
	}
}

func TestReleaseClosesRouting(t *testing.T) {
	a := New(nil)
	_, release := a.OpenSession("sess-1")
	release()
	if _, err := a.SendMessage(context.Background(), "sess-1", channel.OutgoingMessage{}); err == nil {
		t.Fatal("send after release should fail")
	}
}

func TestStopDropsSessions(t *testing.T) {
	a := New(nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	inbox, _ := a.OpenSession("sess-1")
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case _, open := <-inbox:
		if open {
			t.Fatal("inbox should be closed after stop")
		}
	default:
		t.Fatal("inbox should be closed after stop")
	}
	if got := a.HealthCheck(context.Background()); got.State != channel.HealthUnhealthy {
		t.Fatalf("health after stop = %s", got.State)
	}
}

func TestDeliveryTarget(t *testing.T) {
	a := New(nil)
	if got := a.DeliveryTarget(map[string]string{"session_id": "sess-9"}); got != "sess-9" {
		t.Fatalf("target = %q", got)
	}
	if got := a.DeliveryTarget(nil); got != "" {
		t.Fatalf("target = %q, want empty", got)
	}
}

func TestCapabilitiesExcludePush(t *testing.T) {
	caps := New(nil).Capabilities()
	if !caps.Has(channel.CapSendResponses) || !caps.Has(channel.CapReceiveMessages) {
		t.Fatal("web must receive and respond")
	}
	if caps.Has(channel.CapPersistentConnection) || caps.Has(channel.CapPollConversations) {
		t.Fatal("web is session-synchronous and must not advertise a push path")
	}
}
