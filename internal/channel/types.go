// Package channel defines the channel adapter contract, the message types
// that flow through the gateway, and the adapter registry.
package channel

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ID identifies a support channel (web, matrix, tradeapp).
type ID string

const (
	Web      ID = "web"
	Matrix   ID = "matrix"
	TradeApp ID = "tradeapp"
)

func (id ID) String() string { return string(id) }

// ParseID validates and normalizes a raw channel identifier.
func ParseID(raw string) (ID, error) {
	normalized := ID(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case Web, Matrix, TradeApp:
		return normalized, nil
	}
	return "", fmt.Errorf("unsupported channel: %s", raw)
}

// Priority of an inbound message.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Role of a chat history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatTurn is one entry of the optional conversation history attached to an
// inbound question.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserRef identifies the asking user within a channel.
type UserRef struct {
	UserID        string `json:"user_id"`
	SessionID     string `json:"session_id,omitempty"`
	ChannelUserID string `json:"channel_user_id,omitempty"`
	AuthToken     string `json:"-"`
}

const maxQuestionLen = 4000

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-@.:]{1,128}$`)

// IncomingMessage is a user question received from a channel adapter.
// Hooks may rewrite Question and ChannelMetadata during pipeline execution;
// everything else is fixed once validated.
type IncomingMessage struct {
	MessageID       string            `json:"message_id"`
	Channel         ID                `json:"channel"`
	Question        string            `json:"question"`
	User            UserRef           `json:"user"`
	ChatHistory     []ChatTurn        `json:"chat_history,omitempty"`
	ChannelMetadata map[string]string `json:"channel_metadata,omitempty"`
	Priority        Priority          `json:"priority,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
	BypassHooks     bool              `json:"-"`
}

// Validate checks the message against the inbound contract: non-empty
// trimmed question within length bounds, no NUL bytes, well-formed user id.
func (m *IncomingMessage) Validate() error {
	m.Question = strings.TrimSpace(m.Question)
	if m.Question == "" {
		return fmt.Errorf("question is empty")
	}
	if len(m.Question) > maxQuestionLen {
		return fmt.Errorf("question exceeds %d characters", maxQuestionLen)
	}
	if strings.ContainsRune(m.Question, 0) {
		return fmt.Errorf("question contains NUL byte")
	}
	if !userIDPattern.MatchString(m.User.UserID) {
		return fmt.Errorf("invalid user id")
	}
	for _, turn := range m.ChatHistory {
		switch turn.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("invalid chat history role: %s", turn.Role)
		}
		if len(turn.Content) > maxQuestionLen {
			return fmt.Errorf("chat history entry exceeds %d characters", maxQuestionLen)
		}
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}

// Metadata returns the channel metadata value for key, or "".
func (m *IncomingMessage) Metadata(key string) string {
	if m.ChannelMetadata == nil {
		return ""
	}
	return strings.TrimSpace(m.ChannelMetadata[key])
}

// ThreadID derives the logical conversation id from channel metadata,
// falling back to the user session and finally the user id. The result keys
// thread locks and thread state.
func (m *IncomingMessage) ThreadID() string {
	for _, key := range []string{"thread_id", "room_id", "conversation_id", "session_id"} {
		if v := m.Metadata(key); v != "" {
			return v
		}
	}
	if m.User.SessionID != "" {
		return m.User.SessionID
	}
	return m.User.UserID
}

// Source is one retrieval source backing an answer.
type Source struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	URL        string  `json:"url,omitempty"`
	Relevance  float64 `json:"relevance"`
	Category   string  `json:"category,omitempty"`
}

// ResponseMetadata carries answer provenance and pipeline bookkeeping.
type ResponseMetadata struct {
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	Strategy         string   `json:"strategy,omitempty"`
	ModelName        string   `json:"model_name,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	RoutingAction    string   `json:"routing_action,omitempty"`
	RoutingReason    string   `json:"routing_reason,omitempty"`
	HooksExecuted    []string `json:"hooks_executed,omitempty"`
}

// OutgoingMessage is the gateway's reply to one IncomingMessage.
type OutgoingMessage struct {
	MessageID          string           `json:"message_id"`
	InReplyTo          string           `json:"in_reply_to"`
	Channel            ID               `json:"channel"`
	Answer             string           `json:"answer"`
	Sources            []Source         `json:"sources,omitempty"`
	Metadata           ResponseMetadata `json:"metadata"`
	RequiresHuman      bool             `json:"requires_human"`
	User               UserRef          `json:"user"`
	SuggestedQuestions []string         `json:"suggested_questions,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
}

// HealthState reported by an adapter health check.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// HealthStatus is the result of a single adapter health check.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Detail    string      `json:"detail,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}
