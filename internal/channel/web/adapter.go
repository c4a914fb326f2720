// Package web implements the in-process web chat adapter. The HTTP chat
// handler opens a short-lived session inbox, feeds the orchestrator, and
// reads the response back out; there is no out-of-band path to a web user,
// so staff answers are fetched through the escalation response endpoint.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
)

// Adapter is the web channel. Sessions live only as long as the HTTP
// request that opened them.
type Adapter struct {
	mu       sync.Mutex
	sessions map[string]chan channel.OutgoingMessage
	started  bool
	logger   *slog.Logger
}

// New creates the web adapter.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		sessions: map[string]chan channel.OutgoingMessage{},
		logger:   log.With(slog.String("channel", "web")),
	}
}

func (a *Adapter) ChannelID() channel.ID { return channel.Web }

func (a *Adapter) Capabilities() channel.Capabilities {
	return channel.NewCapabilities(
		channel.CapReceiveMessages,
		channel.CapSendResponses,
		channel.CapTextMessages,
		channel.CapChatHistory,
	)
}

func (a *Adapter) Start(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = true
	return nil
}

func (a *Adapter) Stop(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = false
	for id, inbox := range a.sessions {
		close(inbox)
		delete(a.sessions, id)
	}
	return nil
}

func (a *Adapter) HealthCheck(context.Context) channel.HealthStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	state := channel.HealthHealthy
	if !a.started {
		state = channel.HealthUnhealthy
	}
	return channel.HealthStatus{
		State:     state,
		CheckedAt: time.Now().UTC(),
	}
}

// OpenSession registers an inbox for the session and returns it with a
// release function. The inbox holds one message; the chat handler reads it
// after the orchestrator returns.
func (a *Adapter) OpenSession(sessionID string) (<-chan channel.OutgoingMessage, func()) {
	inbox := make(chan channel.OutgoingMessage, 1)
	a.mu.Lock()
	a.sessions[sessionID] = inbox
	a.mu.Unlock()
	release := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if current, ok := a.sessions[sessionID]; ok && current == inbox {
			delete(a.sessions, sessionID)
		}
	}
	return inbox, release
}

// SendMessage routes the response into the session inbox. A closed or
// unknown session is an error; web has no way to reach the user later.
// Web messages keep our own id, so no transport id comes back.
func (a *Adapter) SendMessage(_ context.Context, target string, msg channel.OutgoingMessage) (string, error) {
	a.mu.Lock()
	inbox, ok := a.sessions[target]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("web session not open: %s", target)
	}
	select {
	case inbox <- msg:
		return "", nil
	default:
		return "", fmt.Errorf("web session inbox full: %s", target)
	}
}

func (a *Adapter) DeliveryTarget(metadata map[string]string) string {
	return metadata["session_id"]
}

func (a *Adapter) FormatEscalationMessage(_ string, escalationID int64, supportHandle string) string {
	return escalation.RenderNotice(channel.Web.String(), escalationID, supportHandle, "en")
}
