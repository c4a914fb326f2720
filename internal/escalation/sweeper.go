package escalation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the periodic escalation maintenance jobs: releasing stale
// claims, auto-closing answered escalations, purging old closed rows and
// retrying failed deliveries.
type Sweeper struct {
	service *Service
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
}

// SweepSchedule holds cron expressions for the maintenance jobs. Empty
// fields fall back to the defaults.
type SweepSchedule struct {
	StaleClaims   string
	AutoClose     string
	Purge         string
	DeliveryRetry string
}

func (s SweepSchedule) withDefaults() SweepSchedule {
	if s.StaleClaims == "" {
		s.StaleClaims = "@every 5m"
	}
	if s.AutoClose == "" {
		s.AutoClose = "@every 10m"
	}
	if s.Purge == "" {
		s.Purge = "@every 24h"
	}
	if s.DeliveryRetry == "" {
		s.DeliveryRetry = "@every 1m"
	}
	return s
}

// NewSweeper wires the maintenance jobs onto a cron runner.
func NewSweeper(log *slog.Logger, service *Service, schedule SweepSchedule) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	sweeper := &Sweeper{
		service: service,
		cron:    cron.New(),
		timeout: time.Minute,
		logger:  log.With(slog.String("service", "escalation-sweeper")),
	}
	schedule = schedule.withDefaults()
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) (int, error)
	}{
		{"release_stale_claims", schedule.StaleClaims, service.ReleaseStaleClaims},
		{"auto_close", schedule.AutoClose, service.AutoCloseResponded},
		{"purge_closed", schedule.Purge, service.PurgeExpired},
		{"delivery_retry", schedule.DeliveryRetry, service.RetryDeliveries},
	}
	for _, job := range jobs {
		job := job
		if _, err := sweeper.cron.AddFunc(job.spec, func() { sweeper.runJob(job.name, job.run) }); err != nil {
			return nil, err
		}
	}
	return sweeper, nil
}

func (s *Sweeper) runJob(name string, run func(context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	affected, err := run(ctx)
	if err != nil {
		s.logger.Error("sweep job failed", slog.String("job", name), slog.Any("error", err))
		return
	}
	if affected > 0 {
		s.logger.Info("sweep job done", slog.String("job", name), slog.Int("affected", affected))
	}
}

// Start begins scheduling jobs.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("escalation sweeper started")
}

// Stop halts scheduling and waits for running jobs.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("escalation sweeper stopped")
}
