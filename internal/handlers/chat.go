package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/channel/web"
	"github.com/helpgate/helpgate/internal/orchestrator"
)

// ChatHandler serves the web widget: POST /chat runs one question
// through the full pipeline and returns the response synchronously.
type ChatHandler struct {
	orch    *orchestrator.Orchestrator
	adapter *web.Adapter
	logger  *slog.Logger
}

// ChatRequest is the body for POST /chat.
type ChatRequest struct {
	MessageID   string             `json:"message_id,omitempty"`
	Question    string             `json:"question"`
	UserID      string             `json:"user_id"`
	SessionID   string             `json:"session_id,omitempty"`
	ChatHistory []channel.ChatTurn `json:"chat_history,omitempty"`
	Language    string             `json:"language,omitempty"`
}

// ChatResponse wraps the pipeline's reply.
type ChatResponse struct {
	Status    string                   `json:"status"`
	SessionID string                   `json:"session_id"`
	Response  *channel.OutgoingMessage `json:"response,omitempty"`
}

// NewChatHandler creates the web chat handler.
func NewChatHandler(log *slog.Logger, orch *orchestrator.Orchestrator, adapter *web.Adapter) *ChatHandler {
	return &ChatHandler{
		orch:    orch,
		adapter: adapter,
		logger:  log.With(slog.String("handler", "chat")),
	}
}

// Register mounts POST /chat on the Echo instance.
func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat", h.Chat)
}

// Chat handles one web question end to end.
func (h *ChatHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	messageID := strings.TrimSpace(req.MessageID)
	if messageID == "" {
		messageID = uuid.NewString()
	}

	// The session inbox receives the dispatcher's send for auto-answered
	// turns; escalated turns come back on the outcome directly.
	inbox, release := h.adapter.OpenSession(sessionID)
	defer release()

	msg := channel.IncomingMessage{
		MessageID:   messageID,
		Channel:     channel.Web,
		Question:    req.Question,
		User:        channel.UserRef{UserID: req.UserID, SessionID: sessionID},
		ChatHistory: req.ChatHistory,
		ChannelMetadata: map[string]string{
			"session_id": sessionID,
		},
		Timestamp: time.Now().UTC(),
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		msg.ChannelMetadata["language"] = lang
	}

	outcome := h.orch.Handle(c.Request().Context(), msg)
	switch {
	case outcome.Err != nil:
		return gatewayErrorResponse(c, outcome.Err)
	case outcome.Duplicate:
		return c.JSON(http.StatusConflict, ErrorResponse{Message: "duplicate message"})
	case outcome.Contended:
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "conversation is busy, retry shortly"})
	case outcome.Consumed:
		resp := ChatResponse{Status: "feedback_received", SessionID: sessionID}
		select {
		case ack := <-inbox:
			resp.Response = &ack
		default:
		}
		return c.JSON(http.StatusOK, resp)
	case outcome.Response != nil:
		return c.JSON(http.StatusOK, ChatResponse{
			Status:    "ok",
			SessionID: sessionID,
			Response:  outcome.Response,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "message was not processed")
}
