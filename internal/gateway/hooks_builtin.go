package gateway

import (
	"context"
	"log/slog"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/escalation"
	"github.com/helpgate/helpgate/internal/learning"
	"github.com/helpgate/helpgate/internal/metrics"
	"github.com/helpgate/helpgate/internal/policy"
)

// NewGenerationPolicyHook builds the pre-hook that refuses to generate when
// the admin disabled AI answers for the channel.
func NewGenerationPolicyHook(policies *policy.Service) PreHook {
	return PreHook{
		Name:     "generation_policy",
		Priority: PriorityHigh,
		Fn: func(ctx context.Context, msg *channel.IncomingMessage) *channel.GatewayError {
			if policies.GenerationEnabled(ctx, msg.Channel) {
				return nil
			}
			return channel.NewGatewayError(channel.ErrServiceUnavailable,
				"AI answers are currently disabled for this channel.").
				WithDetail("channel", msg.Channel.String())
		},
	}
}

// AutoResponseDisabledReason is the routing reason stamped when the admin
// switched auto-send off for a channel.
const AutoResponseDisabledReason = "Channel auto-response disabled by admin policy."

// NewAutoResponsePolicyHook builds the post-hook that forces human review
// when auto-send is disabled. It must be registered before the escalation
// hook so the forced requires_human flag is honored.
func NewAutoResponsePolicyHook(policies *policy.Service) PostHook {
	return PostHook{
		Name:     "auto_response_policy",
		Priority: PriorityNormal,
		Fn: func(ctx context.Context, msg *channel.IncomingMessage, out *channel.OutgoingMessage) *channel.GatewayError {
			if policies.AutoResponseEnabled(ctx, msg.Channel) {
				return nil
			}
			out.RequiresHuman = true
			out.Metadata.RoutingAction = learning.ActionQueueMedium.String()
			out.Metadata.RoutingReason = AutoResponseDisabledReason
			return nil
		},
	}
}

// NewEscalationHook builds the post-hook that creates an escalation for
// answers needing human review and swaps the answer for the localized
// waiting notice. Escalation failures never block the pipeline; the AI
// answer stays intact.
func NewEscalationHook(log *slog.Logger, escalations *escalation.Service, registry *channel.Registry, m *metrics.Metrics, supportHandle string) PostHook {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With(slog.String("hook", "escalation"))
	return PostHook{
		Name:     "escalation",
		Priority: PriorityNormal,
		Fn: func(ctx context.Context, msg *channel.IncomingMessage, out *channel.OutgoingMessage) *channel.GatewayError {
			if !out.RequiresHuman {
				return nil
			}
			confidence := 0.0
			if out.Metadata.Confidence != nil {
				confidence = *out.Metadata.Confidence
			}
			priority := escalation.PriorityNormal
			if msg.Priority == channel.PriorityHigh ||
				out.Metadata.RoutingAction == learning.ActionNeedsHuman.String() {
				priority = escalation.PriorityHigh
			}
			// Keyed on the inbound id so a redelivered message lands on the
			// existing escalation instead of opening a second one.
			esc, err := escalations.Create(ctx, escalation.CreateParams{
				MessageID:       msg.MessageID,
				Channel:         msg.Channel,
				UserID:          msg.User.UserID,
				Question:        msg.Question,
				AIDraftAnswer:   out.Answer,
				Confidence:      confidence,
				RoutingAction:   learning.ParseAction(out.Metadata.RoutingAction),
				RoutingReason:   out.Metadata.RoutingReason,
				Sources:         out.Sources,
				ChannelMetadata: msg.ChannelMetadata,
				Priority:        priority,
			})
			if err != nil {
				logger.Error("escalation create failed",
					slog.String("message_id", msg.MessageID),
					slog.Any("error", err))
				return nil
			}
			if m != nil {
				m.EscalationsCreated.WithLabelValues(msg.Channel.String()).Inc()
			}

			lang := msg.Metadata("language")
			if adapter, ok := registry.Get(msg.Channel); ok && lang == "" {
				out.Answer = adapter.FormatEscalationMessage(msg.User.UserID, esc.ID, supportHandle)
			} else {
				out.Answer = escalation.RenderNotice(msg.Channel.String(), esc.ID, supportHandle, lang)
			}
			out.Sources = nil
			out.SuggestedQuestions = nil
			return nil
		},
	}
}

// NewMetricsHook builds the low-priority post-hook that observes the final
// message shape after every other hook ran.
func NewMetricsHook(m *metrics.Metrics) PostHook {
	return PostHook{
		Name:     "metrics",
		Priority: PriorityLow,
		Fn: func(_ context.Context, msg *channel.IncomingMessage, out *channel.OutgoingMessage) *channel.GatewayError {
			if m == nil {
				return nil
			}
			outcome := "answered"
			if out.RequiresHuman {
				outcome = "queued_for_review"
			}
			m.MessagesProcessed.WithLabelValues(msg.Channel.String(), "post_"+outcome).Inc()
			return nil
		},
	}
}
