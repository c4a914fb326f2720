// Package policy holds the per-channel admin switches: whether AI answers
// may be generated at all, and whether they may be auto-sent without human
// review.
package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
)

// ChannelPolicy is the admin-controlled switch pair for one channel.
type ChannelPolicy struct {
	Channel             channel.ID `json:"channel"`
	AIGenerationEnabled bool       `json:"ai_generation_enabled"`
	AutoResponseEnabled bool       `json:"auto_response_enabled"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Store persists channel policies.
type Store interface {
	Get(ctx context.Context, channelID channel.ID) (ChannelPolicy, bool, error)
	Upsert(ctx context.Context, p ChannelPolicy) (ChannelPolicy, error)
	List(ctx context.Context) ([]ChannelPolicy, error)
}

// Service answers policy questions for the gateway hooks. Policies are
// re-read from the store on every call so admin flips take effect without a
// restart; absent rows and store failures default to enabled.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates the policy service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "policy")),
	}
}

// GenerationEnabled reports whether AI answers may be generated for the
// channel.
func (s *Service) GenerationEnabled(ctx context.Context, channelID channel.ID) bool {
	p, found, err := s.store.Get(ctx, channelID)
	if err != nil {
		s.logger.Warn("policy read failed, defaulting to enabled",
			slog.String("channel", channelID.String()), slog.Any("error", err))
		return true
	}
	if !found {
		return true
	}
	return p.AIGenerationEnabled
}

// AutoResponseEnabled reports whether AI answers may be sent without human
// review on the channel.
func (s *Service) AutoResponseEnabled(ctx context.Context, channelID channel.ID) bool {
	p, found, err := s.store.Get(ctx, channelID)
	if err != nil {
		s.logger.Warn("policy read failed, defaulting to enabled",
			slog.String("channel", channelID.String()), slog.Any("error", err))
		return true
	}
	if !found {
		return true
	}
	return p.AutoResponseEnabled
}

// Set stores the switch pair for a channel.
func (s *Service) Set(ctx context.Context, p ChannelPolicy) (ChannelPolicy, error) {
	updated, err := s.store.Upsert(ctx, p)
	if err != nil {
		return ChannelPolicy{}, err
	}
	s.logger.Info("channel policy updated",
		slog.String("channel", p.Channel.String()),
		slog.Bool("ai_generation", p.AIGenerationEnabled),
		slog.Bool("auto_response", p.AutoResponseEnabled))
	return updated, nil
}

// List returns all stored policies.
func (s *Service) List(ctx context.Context) ([]ChannelPolicy, error) {
	return s.store.List(ctx)
}
