package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/helpgate/helpgate/internal/channel"
)

// Deliverer pushes staff answers back to users over the originating channel
// adapter. Poll-only channels never need push delivery; their users fetch
// the answer through the response endpoint.
type Deliverer struct {
	registry *channel.Registry
	store    Store
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDeliverer creates a deliverer. Timeout bounds a single send attempt;
// zero means 15 seconds.
func NewDeliverer(log *slog.Logger, registry *channel.Registry, store Store, timeout time.Duration) *Deliverer {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Deliverer{
		registry: registry,
		store:    store,
		timeout:  timeout,
		logger:   log.With(slog.String("service", "escalation-delivery")),
	}
}

// RequiresPush reports whether the channel needs an outbound send to put
// the staff answer in front of the user. Session-synchronous channels (the
// web widget) have no out-of-band path; their users poll the response
// endpoint instead.
func (d *Deliverer) RequiresPush(id channel.ID) bool {
	adapter, ok := d.registry.Get(id)
	if !ok {
		return false
	}
	caps := adapter.Capabilities()
	if !caps.Has(channel.CapSendResponses) {
		return false
	}
	return caps.Has(channel.CapPersistentConnection) || caps.Has(channel.CapPollConversations)
}

// Deliver attempts one push of the staff answer and records the outcome.
// Returns true when the answer reached the channel.
func (d *Deliverer) Deliver(ctx context.Context, esc Escalation) bool {
	if esc.StaffAnswer == "" {
		return false
	}
	now := time.Now().UTC()

	adapter, ok := d.registry.Get(esc.Channel)
	if !ok {
		d.record(ctx, esc.ID, DeliveryFailed, "channel adapter not registered", now)
		return false
	}

	target := adapter.DeliveryTarget(esc.ChannelMetadata)
	if target == "" {
		d.record(ctx, esc.ID, DeliveryFailed, "no delivery target in channel metadata", now)
		return false
	}

	msg := d.buildMessage(esc)
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if _, err := adapter.SendMessage(sendCtx, target, msg); err != nil {
		d.logger.Warn("staff answer delivery failed",
			slog.Int64("escalation_id", esc.ID),
			slog.String("channel", esc.Channel.String()),
			slog.Int("attempt", esc.DeliveryAttempts+1),
			slog.Any("error", err))
		d.record(ctx, esc.ID, DeliveryFailed, err.Error(), now)
		return false
	}

	d.logger.Info("staff answer delivered",
		slog.Int64("escalation_id", esc.ID),
		slog.String("channel", esc.Channel.String()))
	d.record(ctx, esc.ID, DeliveryDelivered, "", now)
	return true
}

// buildMessage assembles the outgoing staff answer. Provenance carries over
// only when the staff answer is the AI draft verbatim; an edited answer no
// longer matches the retrieved sources or the model confidence.
func (d *Deliverer) buildMessage(esc Escalation) channel.OutgoingMessage {
	msg := channel.OutgoingMessage{
		MessageID: uuid.NewString(),
		InReplyTo: esc.MessageID,
		Channel:   esc.Channel,
		Answer:    esc.StaffAnswer,
		User:      channel.UserRef{UserID: esc.UserID},
		Timestamp: time.Now().UTC(),
		Metadata: channel.ResponseMetadata{
			Strategy:      "human_review",
			RoutingAction: esc.RoutingAction.String(),
			RoutingReason: esc.RoutingReason,
		},
	}
	if SameAnswer(esc.StaffAnswer, esc.AIDraftAnswer) {
		msg.Sources = esc.Sources
		confidence := esc.Confidence
		msg.Metadata.Confidence = &confidence
	}
	return msg
}

func (d *Deliverer) record(ctx context.Context, id int64, status DeliveryStatus, deliveryError string, at time.Time) {
	if err := d.store.RecordDeliveryAttempt(ctx, id, status, deliveryError, at); err != nil {
		d.logger.Error("record delivery attempt failed",
			slog.Int64("escalation_id", id), slog.Any("error", err))
	}
}
