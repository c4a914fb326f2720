// Package poller drives adapters that cannot push: each adapter with the
// poll capability gets its own serial loop feeding the orchestrator.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helpgate/helpgate/internal/channel"
	"github.com/helpgate/helpgate/internal/orchestrator"
	"github.com/helpgate/helpgate/internal/policy"
)

const (
	defaultInterval = 3 * time.Second
	minInterval     = time.Second
	maxInterval     = time.Hour
	defaultBackoff  = 3 * time.Second
)

// Config tunes the poll loops.
type Config struct {
	// Interval between ticks, bounded to [1s, 1h].
	Interval time.Duration
	// Backoff after a failed poll before the loop resumes.
	Backoff time.Duration
	// PerChannel overrides the interval for specific channels.
	PerChannel map[channel.ID]time.Duration
}

func clampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultInterval
	}
	if d < minInterval {
		return minInterval
	}
	if d > maxInterval {
		return maxInterval
	}
	return d
}

// Service owns one goroutine per polling adapter. Ticks for the same
// adapter never overlap because each loop is serial.
type Service struct {
	registry *channel.Registry
	orch     *orchestrator.Orchestrator
	policies *policy.Service
	cfg      Config
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the polling service. Policies are optional; nil always polls.
func New(log *slog.Logger, registry *channel.Registry, orch *orchestrator.Orchestrator, policies *policy.Service, cfg Config) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Service{
		registry: registry,
		orch:     orch,
		policies: policies,
		cfg:      cfg,
		logger:   log.With(slog.String("service", "poller")),
	}
}

// Start launches a loop for every adapter advertising poll support.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, adapter := range s.registry.Pollers() {
		adapter := adapter
		interval := clampInterval(s.cfg.Interval)
		if override, ok := s.cfg.PerChannel[adapter.ChannelID()]; ok {
			interval = clampInterval(override)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runLoop(loopCtx, adapter, interval)
		}()
	}
}

// Stop cancels all loops and waits for them to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("poller stopped")
}

func (s *Service) runLoop(ctx context.Context, adapter channel.Adapter, interval time.Duration) {
	id := adapter.ChannelID()
	logger := s.logger.With(slog.String("channel", id.String()))
	logger.Info("poll loop started", slog.Duration("interval", interval))

	poller, ok := adapter.(channel.Poller)
	if !ok {
		logger.Error("adapter advertises polling but lacks PollConversations")
		return
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("poll loop cancelled")
			return
		case <-timer.C:
		}

		if err := s.tick(ctx, id, poller, logger); err != nil {
			logger.Warn("poll tick failed, backing off", slog.Any("error", err))
			timer.Reset(s.cfg.Backoff)
			continue
		}
		timer.Reset(interval)
	}
}

func (s *Service) tick(ctx context.Context, id channel.ID, poller channel.Poller, logger *slog.Logger) error {
	if s.policies != nil && !s.policies.GenerationEnabled(ctx, id) {
		return nil
	}
	messages, err := poller.PollConversations(ctx)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !s.orch.ProcessIncoming(ctx, msg) {
			logger.Debug("polled message not dispatched",
				slog.String("message_id", msg.MessageID))
		}
	}
	return nil
}
