// Package reaction resolves channel-native reactions (emoji, like buttons)
// against the sent-message tracker and turns them into feedback records.
package reaction

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/feedback"
	"github.com/helpgate/helpgate/internal/tracker"
)

// Event is one reaction received from a channel.
type Event struct {
	Channel           channel.ID
	ExternalMessageID string
	ReactorID         string
	RawReaction       string
	// Rating short-circuits emoji mapping when the channel already carries
	// an explicit verdict (the web thumbs endpoint).
	Rating    feedback.Rating
	Language  string
	Timestamp time.Time
}

// Result reports what Process did with the event.
type Result struct {
	Processed     bool
	NeedsFollowUp bool
	Record        feedback.Record
}

// Processor is the reaction pipeline: tracker lookup, emoji mapping,
// feedback persistence, and follow-up kickoff for negative ratings.
type Processor struct {
	tracker  *tracker.Tracker
	store    feedback.Store
	followUp *feedback.Coordinator
	logger   *slog.Logger

	unmapped atomic.Int64
}

// NewProcessor creates a reaction processor. The follow-up coordinator is
// optional; nil disables the "why" conversation.
func NewProcessor(log *slog.Logger, trk *tracker.Tracker, store feedback.Store, followUp *feedback.Coordinator) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		tracker:  trk,
		store:    store,
		followUp: followUp,
		logger:   log.With(slog.String("service", "reaction")),
	}
}

// Process handles one reaction event. Reactions for untracked messages and
// unmapped emojis are dropped; a negative rating starts the feedback
// follow-up when a coordinator is wired.
func (p *Processor) Process(ctx context.Context, event Event) Result {
	rating := event.Rating
	if rating == "" {
		mapped, ok := MapReaction(event.Channel, event.RawReaction)
		if !ok {
			p.unmapped.Add(1)
			p.logger.Debug("unmapped reaction dropped",
				slog.String("channel", event.Channel.String()),
				slog.String("raw", event.RawReaction))
			return Result{}
		}
		rating = mapped
	}

	record, ok := p.tracker.Lookup(event.Channel, event.ExternalMessageID)
	if !ok {
		// Reaction raced ahead of dispatch tracking or the record expired.
		return Result{}
	}

	stored, err := p.store.Upsert(ctx, feedback.Record{
		MessageID:   record.InternalMessageID,
		Channel:     event.Channel,
		ReactorID:   event.ReactorID,
		UserID:      record.UserID,
		Rating:      rating,
		RawReaction: event.RawReaction,
		Question:    record.Question,
		Answer:      record.Answer,
	})
	if err != nil {
		p.logger.Error("feedback upsert failed",
			slog.String("message_id", record.InternalMessageID),
			slog.Any("error", err))
		return Result{}
	}
	p.logger.Info("reaction recorded",
		slog.String("channel", event.Channel.String()),
		slog.String("message_id", record.InternalMessageID),
		slog.String("rating", string(rating)))

	result := Result{Processed: true, Record: stored}
	if rating == feedback.RatingNegative && p.followUp != nil {
		result.NeedsFollowUp = p.followUp.Begin(ctx, stored, record.DeliveryTarget, event.Language)
	}
	return result
}

// Revoke removes a previously recorded rating, for protocols with reaction
// redaction. Returns false when nothing was tracked or recorded.
func (p *Processor) Revoke(ctx context.Context, channelID channel.ID, externalMessageID, reactorID string) bool {
	record, ok := p.tracker.Lookup(channelID, externalMessageID)
	if !ok {
		return false
	}
	removed, err := p.store.Remove(ctx, record.InternalMessageID, reactorID)
	if err != nil {
		p.logger.Error("feedback remove failed",
			slog.String("message_id", record.InternalMessageID),
			slog.Any("error", err))
		return false
	}
	if removed {
		p.logger.Info("reaction revoked",
			slog.String("channel", channelID.String()),
			slog.String("message_id", record.InternalMessageID))
	}
	return removed
}

// UnmappedCount reports how many reactions were dropped for lack of a
// rating mapping.
func (p *Processor) UnmappedCount() int64 {
	return p.unmapped.Load()
}
