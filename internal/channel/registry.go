package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds all registered channel adapters and drives their lifecycle.
// It must be created via NewRegistry and passed explicitly to components that
// need adapter lookup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[ID]Adapter
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		adapters: map[ID]Adapter{},
		logger:   log.With(slog.String("service", "channel-registry")),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter is nil")
	}
	id := adapter.ChannelID()
	if id == "" {
		return errors.New("channel id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("channel already registered: %s", id)
	}
	r.adapters[id] = adapter
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

// Get returns the adapter for the given channel id.
func (r *Registry) Get(id ID) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	return adapter, ok
}

// List returns all registered adapters.
func (r *Registry) List() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		items = append(items, a)
	}
	return items
}

// Pollers returns the adapters that advertise CapPollConversations and
// implement the Poller interface.
func (r *Registry) Pollers() []Adapter {
	var items []Adapter
	for _, a := range r.List() {
		if !a.Capabilities().Has(CapPollConversations) {
			continue
		}
		if _, ok := a.(Poller); ok {
			items = append(items, a)
		}
	}
	return items
}

// StartAll starts every registered adapter. When continueOnError is true a
// failing adapter does not abort the cohort; all errors are collected and
// returned.
func (r *Registry) StartAll(ctx context.Context, continueOnError bool) []error {
	var errs []error
	for _, adapter := range r.List() {
		if err := adapter.Start(ctx); err != nil {
			err = fmt.Errorf("start channel %s: %w", adapter.ChannelID(), err)
			r.logger.Error("channel start failed",
				slog.String("channel", adapter.ChannelID().String()),
				slog.Any("error", err))
			errs = append(errs, err)
			if !continueOnError {
				return errs
			}
			continue
		}
		r.logger.Info("channel started", slog.String("channel", adapter.ChannelID().String()))
	}
	return errs
}

// StopAll stops every registered adapter, collecting errors.
func (r *Registry) StopAll(ctx context.Context) []error {
	var errs []error
	for _, adapter := range r.List() {
		if err := adapter.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop channel %s: %w", adapter.ChannelID(), err))
			continue
		}
		r.logger.Info("channel stopped", slog.String("channel", adapter.ChannelID().String()))
	}
	return errs
}

// Restart stops and starts a single channel.
func (r *Registry) Restart(ctx context.Context, id ID) error {
	adapter, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("unknown channel: %s", id)
	}
	if err := adapter.Stop(ctx); err != nil {
		r.logger.Warn("channel stop during restart failed",
			slog.String("channel", id.String()), slog.Any("error", err))
	}
	return adapter.Start(ctx)
}

// HealthCheckAll runs a health check on every adapter.
func (r *Registry) HealthCheckAll(ctx context.Context) map[ID]HealthStatus {
	result := map[ID]HealthStatus{}
	for _, adapter := range r.List() {
		status := adapter.HealthCheck(ctx)
		if status.CheckedAt.IsZero() {
			status.CheckedAt = time.Now().UTC()
		}
		result[adapter.ChannelID()] = status
	}
	return result
}
