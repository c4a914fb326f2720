// Package gateway runs the per-message pipeline: pre-hooks, answer service,
// confidence routing, post-hooks. Hooks are values sorted by priority then
// registration order, so pipeline behavior is deterministic per message.
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/helpgate/helpgate/internal/answer"
	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/learning"
	"github.com/helpgate/helpgate/internal/metrics"
)

// Gateway turns one IncomingMessage into one OutgoingMessage or a
// GatewayError.
type Gateway struct {
	answers answer.Service
	router  *learning.Router
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	preHooks  []PreHook
	postHooks []PostHook
	nextSeq   int
}

// New creates a gateway. Router and metrics are optional; timeout bounds
// the answer-service call (zero means 30 seconds).
func New(log *slog.Logger, answers answer.Service, router *learning.Router, m *metrics.Metrics, timeout time.Duration) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		answers: answers,
		router:  router,
		metrics: m,
		timeout: timeout,
		logger:  log.With(slog.String("service", "gateway")),
	}
}

// RegisterPreHook adds a pre-hook. Registration order breaks priority ties.
func (g *Gateway) RegisterPreHook(hook PreHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hook.seq = g.nextSeq
	g.nextSeq++
	g.preHooks = append(g.preHooks, hook)
	sortPreHooks(g.preHooks)
}

// RegisterPostHook adds a post-hook.
func (g *Gateway) RegisterPostHook(hook PostHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	hook.seq = g.nextSeq
	g.nextSeq++
	g.postHooks = append(g.postHooks, hook)
	sortPostHooks(g.postHooks)
}

func (g *Gateway) snapshotHooks() ([]PreHook, []PostHook) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pre := make([]PreHook, len(g.preHooks))
	post := make([]PostHook, len(g.postHooks))
	copy(pre, g.preHooks)
	copy(post, g.postHooks)
	return pre, post
}

// ProcessMessage runs the full pipeline for one message.
func (g *Gateway) ProcessMessage(ctx context.Context, msg channel.IncomingMessage) (channel.OutgoingMessage, *channel.GatewayError) {
	started := time.Now()
	out, gwErr := g.process(ctx, &msg, started)

	if g.metrics != nil {
		g.metrics.ProcessingDuration.WithLabelValues(msg.Channel.String()).
			Observe(time.Since(started).Seconds())
		outcome := "answered"
		switch {
		case gwErr != nil:
			outcome = "error"
		case out.RequiresHuman:
			outcome = "escalated"
		}
		g.metrics.MessagesProcessed.WithLabelValues(msg.Channel.String(), outcome).Inc()
	}
	if gwErr != nil {
		g.logger.Warn("pipeline returned error",
			slog.String("channel", msg.Channel.String()),
			slog.String("message_id", msg.MessageID),
			slog.String("code", string(gwErr.Code)))
		return channel.OutgoingMessage{}, gwErr
	}
	return out, nil
}

func (g *Gateway) process(ctx context.Context, msg *channel.IncomingMessage, started time.Time) (channel.OutgoingMessage, *channel.GatewayError) {
	if err := msg.Validate(); err != nil {
		return channel.OutgoingMessage{}, channel.NewGatewayError(channel.ErrInvalidMessage, err.Error())
	}

	pre, post := g.snapshotHooks()
	var executed []string

	if !msg.BypassHooks {
		for _, hook := range pre {
			if gwErr := hook.Fn(ctx, msg); gwErr != nil {
				g.countHookError(hook.Name, "pre")
				return channel.OutgoingMessage{}, gwErr
			}
			executed = append(executed, hook.Name)
		}
	}

	resp, gwErr := g.queryAnswerService(ctx, msg)
	if gwErr != nil {
		return channel.OutgoingMessage{}, gwErr
	}

	out := g.buildOutgoing(msg, resp)
	out.Metadata.HooksExecuted = executed

	if !msg.BypassHooks {
		for _, hook := range post {
			if gwErr := hook.Fn(ctx, msg, &out); gwErr != nil {
				g.countHookError(hook.Name, "post")
				return channel.OutgoingMessage{}, gwErr
			}
			out.Metadata.HooksExecuted = append(out.Metadata.HooksExecuted, hook.Name)
		}
	}

	out.Metadata.ProcessingTimeMS = time.Since(started).Milliseconds()
	return out, nil
}

func (g *Gateway) queryAnswerService(ctx context.Context, msg *channel.IncomingMessage) (answer.Response, *channel.GatewayError) {
	queryCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	started := time.Now()
	resp, err := g.answers.Query(queryCtx, msg.Question, msg.ChatHistory)
	if g.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		g.metrics.AnswerServiceDuration.WithLabelValues(msg.Channel.String(), status).
			Observe(time.Since(started).Seconds())
	}
	if err != nil {
		g.logger.Error("answer service failed",
			slog.String("channel", msg.Channel.String()),
			slog.String("message_id", msg.MessageID),
			slog.Any("error", err))
		return answer.Response{}, channel.NewGatewayError(channel.ErrRAGServiceError,
			"The answer service is currently unavailable. Please try again later.")
	}
	return resp, nil
}

// buildOutgoing assembles the response and applies confidence routing. The
// answer service's own requires_human verdict is authoritative; otherwise
// the router classifies the confidence score.
func (g *Gateway) buildOutgoing(msg *channel.IncomingMessage, resp answer.Response) channel.OutgoingMessage {
	out := channel.OutgoingMessage{
		MessageID:          uuid.NewString(),
		InReplyTo:          msg.MessageID,
		Channel:            msg.Channel,
		Answer:             resp.Answer,
		Sources:            resp.Sources,
		RequiresHuman:      resp.RequiresHuman,
		User:               msg.User,
		SuggestedQuestions: resp.SuggestedQuestions,
		Timestamp:          time.Now().UTC(),
		Metadata: channel.ResponseMetadata{
			Strategy:      resp.RAGStrategy,
			ModelName:     resp.ModelName,
			Confidence:    resp.ConfidenceScore,
			RoutingReason: resp.RoutingReason,
		},
	}

	action := learning.ActionAutoSend
	if resp.RoutingAction != "" {
		action = learning.ParseAction(resp.RoutingAction)
	}
	switch {
	case resp.RequiresHuman:
		action = learning.ActionNeedsHuman
	case g.router != nil && resp.ConfidenceScore != nil:
		decision := g.router.RouteResponse(*resp.ConfidenceScore)
		action = decision.Action
		if decision.Flag != "" && out.Metadata.RoutingReason == "" {
			out.Metadata.RoutingReason = decision.Flag
		}
	}
	out.RequiresHuman = action != learning.ActionAutoSend
	out.Metadata.RoutingAction = action.String()
	return out
}

func (g *Gateway) countHookError(name, kind string) {
	if g.metrics != nil {
		g.metrics.HookErrors.WithLabelValues(name, kind).Inc()
	}
}
