package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/coordination"
)

// FollowUpKey is the coordination key for a pending follow-up prompt. One
// pending prompt per (channel, user); a newer negative reaction overwrites
// the older one.
func FollowUpKey(channelID, userID string) string {
	return fmt.Sprintf("followup:%s:%s", channelID, userID)
}

var followUpPrompts = map[string]string{
	"en": "Sorry the answer didn't help. Could you tell us briefly what was wrong with it?",
	"de": "Schade, dass die Antwort nicht geholfen hat. Können Sie uns kurz sagen, was daran nicht gestimmt hat?",
	"es": "Lamentamos que la respuesta no haya sido útil. ¿Podría decirnos brevemente qué falló?",
	"fr": "Désolé que la réponse ne vous ait pas aidé. Pouvez-vous nous dire brièvement ce qui n'allait pas ?",
}

var followUpAcks = map[string]string{
	"en": "Thank you, your feedback has been recorded and will help us improve.",
	"de": "Vielen Dank, Ihr Feedback wurde aufgenommen und hilft uns, besser zu werden.",
	"es": "Gracias, hemos registrado sus comentarios y nos ayudarán a mejorar.",
	"fr": "Merci, votre retour a été enregistré et nous aidera à nous améliorer.",
}

// Coordinator runs the "why was this unhelpful" follow-up conversation.
// Pending prompts live in the coordination store so any node can consume
// the user's reply.
type Coordinator struct {
	coord    coordination.Store
	store    Store
	registry *channel.Registry
	ttl      time.Duration
	logger   *slog.Logger
}

// NewCoordinator creates the follow-up coordinator. TTL bounds how long a
// prompt waits for the user's reply; zero means 15 minutes.
func NewCoordinator(log *slog.Logger, coord coordination.Store, store Store, registry *channel.Registry, ttl time.Duration) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Coordinator{
		coord:    coord,
		store:    store,
		registry: registry,
		ttl:      ttl,
		logger:   log.With(slog.String("service", "feedback-followup")),
	}
}

// Begin marks a pending follow-up for the reactor and sends the prompt over
// the channel. Coordination failures degrade to "no follow-up" rather than
// failing the reaction.
func (c *Coordinator) Begin(ctx context.Context, record Record, deliveryTarget, lang string) bool {
	if c.coord == nil {
		return false
	}
	value := record.MessageID + "\x00" + record.ReactorID
	key := FollowUpKey(record.Channel.String(), record.UserID)
	if err := c.coord.SetState(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("follow-up state write failed",
			slog.String("key", key), slog.Any("error", err))
		return false
	}
	c.send(ctx, record.Channel, deliveryTarget, record.MessageID, prompt(followUpPrompts, lang))
	return true
}

// ConsumeIfPending checks whether the incoming message answers an open
// follow-up prompt. When it does, the reply is analyzed, attached to the
// feedback record, acknowledged, and the pending entry cleared. Returns
// true when the message was consumed and must not enter the regular
// pipeline.
func (c *Coordinator) ConsumeIfPending(ctx context.Context, msg channel.IncomingMessage) bool {
	if c.coord == nil {
		return false
	}
	key := FollowUpKey(msg.Channel.String(), msg.User.UserID)
	value, ok, err := c.coord.GetState(ctx, key)
	if err != nil {
		c.logger.Warn("follow-up state read failed",
			slog.String("key", key), slog.Any("error", err))
		return false
	}
	if !ok {
		return false
	}

	messageID, reactorID, valid := strings.Cut(value, "\x00")
	if !valid {
		_ = c.coord.DeleteState(ctx, key)
		return false
	}

	issues := AnalyzeExplanation(msg.Question)
	attached, err := c.store.AttachFollowUp(ctx, messageID, reactorID, msg.Question, issues)
	if err != nil {
		c.logger.Error("attach follow-up failed",
			slog.String("message_id", messageID), slog.Any("error", err))
	}
	if attached {
		c.logger.Info("follow-up recorded",
			slog.String("message_id", messageID),
			slog.String("channel", msg.Channel.String()),
			slog.Any("issues", issues))
	}

	if adapter, found := c.registry.Get(msg.Channel); found {
		target := adapter.DeliveryTarget(msg.ChannelMetadata)
		c.send(ctx, msg.Channel, target, messageID, prompt(followUpAcks, msg.Metadata("language")))
	}
	if err := c.coord.DeleteState(ctx, key); err != nil {
		c.logger.Warn("follow-up state delete failed",
			slog.String("key", key), slog.Any("error", err))
	}
	return true
}

func (c *Coordinator) send(ctx context.Context, channelID channel.ID, target, inReplyTo, text string) {
	if c.registry == nil || target == "" {
		return
	}
	adapter, ok := c.registry.Get(channelID)
	if !ok || !adapter.Capabilities().Has(channel.CapSendResponses) {
		return
	}
	msg := channel.OutgoingMessage{
		MessageID: uuid.NewString(),
		InReplyTo: inReplyTo,
		Channel:   channelID,
		Answer:    text,
		Timestamp: time.Now().UTC(),
	}
	if _, err := adapter.SendMessage(ctx, target, msg); err != nil {
		c.logger.Warn("follow-up send failed",
			slog.String("channel", channelID.String()), slog.Any("error", err))
	}
}

func prompt(table map[string]string, lang string) string {
	normalized := strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(normalized, "-_"); idx > 0 {
		normalized = normalized[:idx]
	}
	if text, ok := table[normalized]; ok {
		return text
	}
	return table["en"]
}
