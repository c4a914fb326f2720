package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/helpgate/helpgate/internal/auth"
	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
)

// EscalationsHandler serves the staff review queue and the public
// escalation-status endpoints the web widget polls.
type EscalationsHandler struct {
	service *escalation.Service
	logger  *slog.Logger
}

// RespondRequest is the body for POST /admin/escalations/:id/respond.
type RespondRequest struct {
	Answer string `json:"answer"`
}

// RateRequest is the body for POST /escalations/:message_id/rate.
type RateRequest struct {
	Rating *int `json:"rating"`
}

// EscalationResponseStatus is the public view of an escalation the asking
// user polls while waiting for a human.
type EscalationResponseStatus struct {
	MessageID         string     `json:"message_id"`
	Status            string     `json:"status"`
	Resolution        string     `json:"resolution,omitempty"`
	Answer            string     `json:"answer,omitempty"`
	AnsweredAt        *time.Time `json:"answered_at,omitempty"`
	StaffAnswerRating *int       `json:"staff_answer_rating,omitempty"`
}

// NewEscalationsHandler creates the escalations handler.
func NewEscalationsHandler(log *slog.Logger, service *escalation.Service) *EscalationsHandler {
	return &EscalationsHandler{
		service: service,
		logger:  log.With(slog.String("handler", "escalations")),
	}
}

// Register mounts the escalation routes. The /admin tree requires a staff
// token; the /escalations tree is public and keyed by message id.
func (h *EscalationsHandler) Register(e *echo.Echo) {
	e.GET("/admin/escalations", h.List)
	e.GET("/admin/escalations/counts", h.Counts)
	e.GET("/admin/escalations/:id", h.Get)
	e.POST("/admin/escalations/:id/claim", h.Claim)
	e.POST("/admin/escalations/:id/respond", h.Respond)
	e.POST("/admin/escalations/:id/close", h.Close)
	e.GET("/escalations/:message_id/response", h.ResponseStatus)
	e.POST("/escalations/:message_id/rate", h.Rate)
}

// List returns escalations matching the query filter.
func (h *EscalationsHandler) List(c echo.Context) error {
	filter := escalation.Filter{
		Status:  escalation.Status(strings.TrimSpace(c.QueryParam("status"))),
		StaffID: strings.TrimSpace(c.QueryParam("staff_id")),
	}
	if raw := strings.TrimSpace(c.QueryParam("channel")); raw != "" {
		id, err := channel.ParseID(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter.Channel = id
	}
	if raw := strings.TrimSpace(c.QueryParam("priority")); raw != "" {
		filter.Priority = escalation.Priority(raw)
	}
	filter.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	filter.Offset, _ = strconv.Atoi(c.QueryParam("offset"))

	items, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Counts returns per-status escalation totals for the admin dashboard.
func (h *EscalationsHandler) Counts(c echo.Context) error {
	counts, err := h.service.CountsByStatus(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, counts)
}

// Get returns a single escalation by numeric id.
func (h *EscalationsHandler) Get(c echo.Context) error {
	id, err := h.numericID(c)
	if err != nil {
		return err
	}
	esc, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "escalation not found")
	}
	return c.JSON(http.StatusOK, esc)
}

// Claim takes review ownership for the authenticated staff member.
func (h *EscalationsHandler) Claim(c echo.Context) error {
	id, err := h.numericID(c)
	if err != nil {
		return err
	}
	staffID := auth.AccountID(c)
	if staffID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "staff token required")
	}
	esc, err := h.service.Claim(c.Request().Context(), id, staffID)
	if err != nil {
		return escalationError(err)
	}
	return c.JSON(http.StatusOK, esc)
}

// Respond records the staff answer and triggers delivery.
func (h *EscalationsHandler) Respond(c echo.Context) error {
	id, err := h.numericID(c)
	if err != nil {
		return err
	}
	staffID := auth.AccountID(c)
	if staffID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "staff token required")
	}
	var req RespondRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Answer) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "answer is required")
	}
	esc, err := h.service.Respond(c.Request().Context(), id, req.Answer, staffID)
	if err != nil {
		return escalationError(err)
	}
	return c.JSON(http.StatusOK, esc)
}

// Close moves the escalation to closed.
func (h *EscalationsHandler) Close(c echo.Context) error {
	id, err := h.numericID(c)
	if err != nil {
		return err
	}
	esc, err := h.service.Close(c.Request().Context(), id)
	if err != nil {
		return escalationError(err)
	}
	return c.JSON(http.StatusOK, esc)
}

// ResponseStatus is the public endpoint the asking user polls while waiting
// for a human. The path carries the pipeline message id, not the numeric
// escalation id.
func (h *EscalationsHandler) ResponseStatus(c echo.Context) error {
	messageID := strings.TrimSpace(c.Param("message_id"))
	esc, err := h.service.GetByMessageID(c.Request().Context(), messageID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "escalation not found")
	}

	resp := EscalationResponseStatus{MessageID: esc.MessageID}
	switch esc.Status {
	case escalation.StatusPending:
		resp.Status = "pending"
	case escalation.StatusInReview:
		resp.Status = "in_review"
	case escalation.StatusResponded, escalation.StatusClosed:
		resp.Status = "resolved"
		resp.Resolution = "closed"
		if esc.RespondedAt != nil {
			resp.Resolution = "responded"
			resp.Answer = esc.StaffAnswer
			resp.AnsweredAt = esc.RespondedAt
			resp.StaffAnswerRating = esc.StaffAnswerRating
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// Rate records the asking user's 0/1 verdict on the staff answer.
func (h *EscalationsHandler) Rate(c echo.Context) error {
	messageID := strings.TrimSpace(c.Param("message_id"))
	var req RateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Rating == nil || (*req.Rating != 0 && *req.Rating != 1) {
		return echo.NewHTTPError(http.StatusBadRequest, "rating must be 0 or 1")
	}
	esc, err := h.service.RateStaffAnswer(c.Request().Context(), messageID, *req.Rating)
	if err != nil {
		if errors.Is(err, escalation.ErrNoStaffAnswer) {
			return echo.NewHTTPError(http.StatusBadRequest, "escalation has no staff answer yet")
		}
		return escalationError(err)
	}
	return c.JSON(http.StatusOK, esc)
}

func (h *EscalationsHandler) numericID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid escalation id")
	}
	return id, nil
}

func escalationError(err error) error {
	switch {
	case errors.Is(err, escalation.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "escalation not found")
	case errors.Is(err, escalation.ErrAlreadyClaimed):
		return echo.NewHTTPError(http.StatusConflict, "escalation already claimed by another staff member")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
