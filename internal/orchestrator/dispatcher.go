package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/tracker"
)

// Dispatcher delivers a computed response over the originating channel and
// records it in the sent-message tracker so later reactions can resolve it.
type Dispatcher struct {
	registry *channel.Registry
	tracker  *tracker.Tracker
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. Timeout bounds a single delivery
// (zero means 15 seconds).
func NewDispatcher(log *slog.Logger, registry *channel.Registry, trk *tracker.Tracker, timeout time.Duration) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		tracker:  trk,
		timeout:  timeout,
		logger:   log.With(slog.String("service", "dispatcher")),
	}
}

// Dispatch sends the response to the user. Escalated turns skip the direct
// adapter send: the escalation notice rides back on the adapter's own
// synchronous return path and the staff answer is delivered later. Every
// successful turn is recorded in the tracker under the id reactions will
// carry, which is the transport's own id when the channel assigns one.
func (d *Dispatcher) Dispatch(ctx context.Context, msg channel.IncomingMessage, out channel.OutgoingMessage) bool {
	target := ""
	if adapter, ok := d.registry.Get(msg.Channel); ok {
		target = adapter.DeliveryTarget(msg.ChannelMetadata)
	}

	externalID := out.MessageID
	if !out.RequiresHuman {
		adapter, ok := d.registry.Get(msg.Channel)
		if !ok {
			d.logger.Error("no adapter registered for channel",
				slog.String("channel", msg.Channel.String()))
			return false
		}
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		sentID, err := adapter.SendMessage(sendCtx, target, out)
		if err != nil {
			d.logger.Warn("dispatch failed",
				slog.String("channel", msg.Channel.String()),
				slog.String("message_id", out.MessageID),
				slog.Any("error", err))
			return false
		}
		if sentID != "" {
			externalID = sentID
		}
	}

	d.track(msg, out, externalID, target)
	return true
}

func (d *Dispatcher) track(msg channel.IncomingMessage, out channel.OutgoingMessage, externalID, target string) {
	if d.tracker == nil {
		return
	}
	d.tracker.Track(msg.Channel, externalID, tracker.Record{
		InternalMessageID: out.MessageID,
		Question:          msg.Question,
		Answer:            out.Answer,
		UserID:            msg.User.UserID,
		Timestamp:         out.Timestamp,
		Sources:           out.Sources,
		ConfidenceScore:   out.Metadata.Confidence,
		RequiresHuman:     out.RequiresHuman,
		RoutingAction:     out.Metadata.RoutingAction,
		DeliveryTarget:    target,
	})
}
