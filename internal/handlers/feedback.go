package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/feedback"
	"github.com/helpgate/helpgate/internal/reaction"
)

// FeedbackHandler serves the web widget's explicit thumbs endpoint. Other
// channels rate through native reactions; the web widget posts here.
type FeedbackHandler struct {
	processor *reaction.Processor
	logger    *slog.Logger
}

// ReactRequest is the body for POST /feedback/react.
type ReactRequest struct {
	MessageID string `json:"message_id"`
	Rating    *int   `json:"rating"`
	UserID    string `json:"user_id"`
	Language  string `json:"language,omitempty"`
}

// ReactResponse reports whether the rating was recorded and whether a
// follow-up question is pending for this user.
type ReactResponse struct {
	Success               bool `json:"success"`
	NeedsFeedbackFollowup bool `json:"needs_feedback_followup"`
}

// NewFeedbackHandler creates the feedback handler.
func NewFeedbackHandler(log *slog.Logger, processor *reaction.Processor) *FeedbackHandler {
	return &FeedbackHandler{
		processor: processor,
		logger:    log.With(slog.String("handler", "feedback")),
	}
}

// Register mounts POST /feedback/react on the Echo instance.
func (h *FeedbackHandler) Register(e *echo.Echo) {
	e.POST("/feedback/react", h.React)
}

// React records an explicit 0/1 rating for a delivered answer.
func (h *FeedbackHandler) React(c echo.Context) error {
	var req ReactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.MessageID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message_id is required")
	}
	if req.Rating == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rating is required")
	}
	rating, err := feedback.ParseRating(*req.Rating)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	reactorID := strings.TrimSpace(req.UserID)
	if reactorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	result := h.processor.Process(c.Request().Context(), reaction.Event{
		Channel:           channel.Web,
		ExternalMessageID: req.MessageID,
		ReactorID:         reactorID,
		Rating:            rating,
		Language:          req.Language,
		Timestamp:         time.Now().UTC(),
	})
	if !result.Processed {
		return echo.NewHTTPError(http.StatusNotFound, "message not tracked")
	}
	return c.JSON(http.StatusOK, ReactResponse{
		Success:               true,
		NeedsFeedbackFollowup: result.NeedsFollowUp,
	})
}
