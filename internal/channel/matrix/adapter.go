// Package matrix implements the Matrix channel over the client-server API:
// a long-polling /sync loop for inbound room messages and reactions, and
// room sends for outbound answers.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
)

// InboundFunc receives one inbound message; the return value reports
// whether the pipeline handled it.
type InboundFunc func(ctx context.Context, msg channel.IncomingMessage) bool

// ReactionFunc receives one inbound reaction annotation.
type ReactionFunc struct {
	React  func(ctx context.Context, externalMessageID, reactorID, key string)
	Revoke func(ctx context.Context, externalMessageID, reactorID string)
}

// Config holds the homeserver connection.
type Config struct {
	HomeserverURL string
	UserID        string
	AccessToken   string
	SupportHandle string
	SyncTimeout   time.Duration // long-poll timeout, default 30s
}

// Adapter is the Matrix bot.
type Adapter struct {
	cfg      Config
	http     *http.Client
	inbound  InboundFunc
	reaction ReactionFunc
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	// relatesTo remembers which message a reaction event annotated, so a
	// redaction can revoke it.
	relatesTo map[string]reactionRef
}

type reactionRef struct {
	messageID string
	reactorID string
}

// New creates the Matrix adapter. Inbound and reaction sinks are wired
// before Start.
func New(log *slog.Logger, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 30 * time.Second
	}
	return &Adapter{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.SyncTimeout + 15*time.Second},
		logger:    log.With(slog.String("channel", "matrix")),
		relatesTo: map[string]reactionRef{},
	}
}

// SetInbound wires the message sink. Must be called before Start.
func (a *Adapter) SetInbound(fn InboundFunc) { a.inbound = fn }

// SetReaction wires the reaction sink. Must be called before Start.
func (a *Adapter) SetReaction(fn ReactionFunc) { a.reaction = fn }

func (a *Adapter) ChannelID() channel.ID { return channel.Matrix }

func (a *Adapter) Capabilities() channel.Capabilities {
	return channel.NewCapabilities(
		channel.CapReceiveMessages,
		channel.CapSendResponses,
		channel.CapPersistentConnection,
		channel.CapTextMessages,
	)
}

// Start launches the sync loop.
func (a *Adapter) Start(context.Context) error {
	if a.cfg.HomeserverURL == "" || a.cfg.AccessToken == "" {
		return fmt.Errorf("matrix homeserver url and access token are required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.syncLoop(loopCtx)
	return nil
}

// Stop cancels the sync loop and waits for it to exit.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) HealthCheck(ctx context.Context) channel.HealthStatus {
	status := channel.HealthStatus{CheckedAt: time.Now().UTC()}
	a.mu.Lock()
	running := a.cancel != nil
	a.mu.Unlock()
	if !running {
		status.State = channel.HealthUnhealthy
		status.Detail = "sync loop not running"
		return status
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.HomeserverURL+"/_matrix/client/v3/account/whoami", nil)
	if err != nil {
		status.State = channel.HealthUnhealthy
		status.Detail = err.Error()
		return status
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	resp, err := a.http.Do(req)
	if err != nil {
		status.State = channel.HealthDegraded
		status.Detail = err.Error()
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.State = channel.HealthDegraded
		status.Detail = fmt.Sprintf("whoami returned %d", resp.StatusCode)
		return status
	}
	status.State = channel.HealthHealthy
	return status
}

// SendMessage posts an m.room.message into the target room and returns the
// event id the homeserver assigned. Reactions and redactions reference that
// id, so losing it would orphan the sent message.
func (a *Adapter) SendMessage(ctx context.Context, target string, msg channel.OutgoingMessage) (string, error) {
	if target == "" {
		return "", fmt.Errorf("matrix room id is required")
	}
	body := map[string]any{
		"msgtype": "m.text",
		"body":    msg.Answer,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/_matrix/client/v3/rooms/%s/send/m.room.message/%s",
		a.cfg.HomeserverURL, url.PathEscape(target), uuid.NewString())
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("matrix send failed: %d: %s", resp.StatusCode, raw)
	}
	var sent struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sent); err != nil {
		return "", fmt.Errorf("matrix send response: %w", err)
	}
	return sent.EventID, nil
}

func (a *Adapter) DeliveryTarget(metadata map[string]string) string {
	return metadata["room_id"]
}

func (a *Adapter) FormatEscalationMessage(username string, escalationID int64, supportHandle string) string {
	if supportHandle == "" {
		supportHandle = a.cfg.SupportHandle
	}
	return escalation.RenderNotice(channel.Matrix.String(), escalationID, supportHandle, "en")
}

// syncResponse is the subset of the /sync payload the adapter consumes.
type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[string]struct {
			Timeline struct {
				Events []syncEvent `json:"events"`
			} `json:"timeline"`
		} `json:"join"`
	} `json:"rooms"`
}

type syncEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Sender  string `json:"sender"`
	Redacts string `json:"redacts,omitempty"`
	Content struct {
		MsgType   string `json:"msgtype,omitempty"`
		Body      string `json:"body,omitempty"`
		RelatesTo struct {
			RelType string `json:"rel_type,omitempty"`
			EventID string `json:"event_id,omitempty"`
			Key     string `json:"key,omitempty"`
		} `json:"m.relates_to,omitempty"`
	} `json:"content"`
}

func (a *Adapter) syncLoop(ctx context.Context) {
	defer close(a.done)
	since := ""
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		resp, err := a.sync(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("sync failed, backing off", slog.Any("error", err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		// The first sync only establishes the since token; replaying the
		// backlog would answer questions from before the restart.
		if since != "" {
			a.consume(ctx, resp)
		}
		since = resp.NextBatch
	}
}

func (a *Adapter) sync(ctx context.Context, since string) (syncResponse, error) {
	params := url.Values{}
	params.Set("timeout", fmt.Sprintf("%d", a.cfg.SyncTimeout.Milliseconds()))
	if since != "" {
		params.Set("since", since)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.cfg.HomeserverURL+"/_matrix/client/v3/sync?"+params.Encode(), nil)
	if err != nil {
		return syncResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.cfg.AccessToken)
	resp, err := a.http.Do(req)
	if err != nil {
		return syncResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return syncResponse{}, fmt.Errorf("sync returned %d", resp.StatusCode)
	}
	var out syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return syncResponse{}, err
	}
	return out, nil
}

func (a *Adapter) consume(ctx context.Context, resp syncResponse) {
	for roomID, room := range resp.Rooms.Join {
		for _, event := range room.Timeline.Events {
			a.consumeEvent(ctx, roomID, event)
		}
	}
}

func (a *Adapter) consumeEvent(ctx context.Context, roomID string, event syncEvent) {
	if event.Sender == a.cfg.UserID {
		return
	}
	switch event.Type {
	case "m.room.message":
		if event.Content.MsgType != "m.text" || a.inbound == nil {
			return
		}
		question := strings.TrimSpace(event.Content.Body)
		if question == "" {
			return
		}
		a.inbound(ctx, channel.IncomingMessage{
			MessageID: event.EventID,
			Channel:   channel.Matrix,
			Question:  question,
			User:      channel.UserRef{UserID: event.Sender},
			ChannelMetadata: map[string]string{
				"room_id": roomID,
			},
			Timestamp: time.Now().UTC(),
		})
	case "m.reaction":
		rel := event.Content.RelatesTo
		if rel.RelType != "m.annotation" || a.reaction.React == nil {
			return
		}
		a.mu.Lock()
		a.relatesTo[event.EventID] = reactionRef{messageID: rel.EventID, reactorID: event.Sender}
		a.mu.Unlock()
		a.reaction.React(ctx, rel.EventID, event.Sender, rel.Key)
	case "m.room.redaction":
		if event.Redacts == "" || a.reaction.Revoke == nil {
			return
		}
		a.mu.Lock()
		ref, ok := a.relatesTo[event.Redacts]
		if ok {
			delete(a.relatesTo, event.Redacts)
		}
		a.mu.Unlock()
		if ok {
			a.reaction.Revoke(ctx, ref.messageID, ref.reactorID)
		}
	}
}
