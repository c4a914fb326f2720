// Package metrics collects Prometheus counters and timings for the gateway
// pipeline, escalations and feedback.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors the pipeline reports into.
type Metrics struct {
	// MessagesProcessed counts pipeline invocations.
	// Labels: channel, outcome (answered|escalated|error)
	MessagesProcessed *prometheus.CounterVec

	// ProcessingDuration measures full pipeline latency in seconds.
	// Labels: channel
	ProcessingDuration *prometheus.HistogramVec

	// AnswerServiceDuration measures answer-service call latency in seconds.
	// Labels: channel, status (success|error)
	AnswerServiceDuration *prometheus.HistogramVec

	// HookErrors counts hook short-circuits. Labels: hook, kind (pre|post)
	HookErrors *prometheus.CounterVec

	// EscalationsCreated counts new escalation rows. Labels: channel
	EscalationsCreated *prometheus.CounterVec

	// DeliveryAttempts counts staff answer deliveries.
	// Labels: channel, status (delivered|failed)
	DeliveryAttempts *prometheus.CounterVec

	// ReactionsProcessed counts reaction events.
	// Labels: channel, outcome (recorded|untracked|unmapped)
	ReactionsProcessed *prometheus.CounterVec

	// ThresholdRecomputes counts learning engine threshold updates.
	ThresholdRecomputes prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpgate_messages_processed_total",
				Help: "Pipeline invocations by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		ProcessingDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpgate_processing_duration_seconds",
				Help:    "Full pipeline latency per message",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"channel"},
		),
		AnswerServiceDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helpgate_answer_service_duration_seconds",
				Help:    "Answer service call latency",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"channel", "status"},
		),
		HookErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpgate_hook_errors_total",
				Help: "Hook short-circuits by hook name and kind",
			},
			[]string{"hook", "kind"},
		),
		EscalationsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpgate_escalations_created_total",
				Help: "Escalations created by channel",
			},
			[]string{"channel"},
		),
		DeliveryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpgate_delivery_attempts_total",
				Help: "Staff answer delivery attempts by channel and status",
			},
			[]string{"channel", "status"},
		),
		ReactionsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helpgate_reactions_total",
				Help: "Reaction events by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		ThresholdRecomputes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "helpgate_threshold_recomputes_total",
				Help: "Learning engine threshold recomputations",
			},
		),
	}
}

// Handler serves the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
