// Package tradeapp implements the trading-app support channel over its REST
// bridge: the gateway polls pending conversations and posts replies back.
package tradeapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
)

// Config holds the support bridge connection.
type Config struct {
	BaseURL       string
	APIKey        string
	SupportHandle string
	Timeout       time.Duration // per-request bound, default 15s
}

// Adapter is the trading-app channel.
type Adapter struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates the trade-app adapter.
func New(log *slog.Logger, cfg Config) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Adapter{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.With(slog.String("channel", "tradeapp")),
	}
}

func (a *Adapter) ChannelID() channel.ID { return channel.TradeApp }

func (a *Adapter) Capabilities() channel.Capabilities {
	return channel.NewCapabilities(
		channel.CapReceiveMessages,
		channel.CapSendResponses,
		channel.CapPollConversations,
		channel.CapTextMessages,
		channel.CapChatHistory,
	)
}

func (a *Adapter) Start(context.Context) error {
	if a.cfg.BaseURL == "" || a.cfg.APIKey == "" {
		return fmt.Errorf("tradeapp base url and api key are required")
	}
	return nil
}

func (a *Adapter) Stop(context.Context) error { return nil }

func (a *Adapter) HealthCheck(ctx context.Context) channel.HealthStatus {
	status := channel.HealthStatus{CheckedAt: time.Now().UTC()}
	req, err := a.newRequest(ctx, http.MethodGet, "/support/health", nil)
	if err != nil {
		status.State = channel.HealthUnhealthy
		status.Detail = err.Error()
		return status
	}
	resp, err := a.http.Do(req)
	if err != nil {
		status.State = channel.HealthDegraded
		status.Detail = err.Error()
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.State = channel.HealthDegraded
		status.Detail = fmt.Sprintf("health returned %d", resp.StatusCode)
		return status
	}
	status.State = channel.HealthHealthy
	return status
}

// pendingMessage is one user question from the bridge.
type pendingMessage struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Text           string `json:"text"`
	Language       string `json:"language,omitempty"`
	History        []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"history,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PollConversations fetches and acknowledges the pending question batch.
func (a *Adapter) PollConversations(ctx context.Context) ([]channel.IncomingMessage, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/support/messages/pending", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned %d", resp.StatusCode)
	}
	var payload struct {
		Items []pendingMessage `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]channel.IncomingMessage, 0, len(payload.Items))
	for _, item := range payload.Items {
		msg := channel.IncomingMessage{
			MessageID: item.MessageID,
			Channel:   channel.TradeApp,
			Question:  item.Text,
			User:      channel.UserRef{UserID: item.UserID},
			ChannelMetadata: map[string]string{
				"conversation_id": item.ConversationID,
			},
			Timestamp: item.CreatedAt,
		}
		if item.Language != "" {
			msg.ChannelMetadata["language"] = item.Language
		}
		for _, turn := range item.History {
			role := channel.RoleUser
			if turn.Role == "assistant" {
				role = channel.RoleAssistant
			}
			msg.ChatHistory = append(msg.ChatHistory, channel.ChatTurn{Role: role, Content: turn.Text})
		}
		out = append(out, msg)
	}
	return out, nil
}

// SendMessage posts a reply into the conversation. The bridge stores the
// reply under the message_id we pass, so there is no transport id to return.
func (a *Adapter) SendMessage(ctx context.Context, target string, msg channel.OutgoingMessage) (string, error) {
	if target == "" {
		return "", fmt.Errorf("tradeapp conversation id is required")
	}
	payload, err := json.Marshal(map[string]any{
		"message_id":  msg.MessageID,
		"in_reply_to": msg.InReplyTo,
		"text":        msg.Answer,
	})
	if err != nil {
		return "", err
	}
	req, err := a.newRequest(ctx, http.MethodPost,
		"/support/conversations/"+url.PathEscape(target)+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tradeapp send failed: %d: %s", resp.StatusCode, raw)
	}
	return "", nil
}

func (a *Adapter) DeliveryTarget(metadata map[string]string) string {
	return metadata["conversation_id"]
}

func (a *Adapter) FormatEscalationMessage(username string, escalationID int64, supportHandle string) string {
	if supportHandle == "" {
		supportHandle = a.cfg.SupportHandle
	}
	return escalation.RenderNotice(channel.TradeApp.String(), escalationID, supportHandle, "en")
}

func (a *Adapter) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", a.cfg.APIKey)
	return req, nil
}
