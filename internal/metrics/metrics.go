// Package metrics provides Prometheus metrics for focusbot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	ActivitiesStarted  *prometheus.CounterVec
	ActivitiesFinished *prometheus.CounterVec
	MessagesSent       *prometheus.CounterVec
	TurnsTotal         *prometheus.CounterVec
	TurnDuration       prometheus.Histogram
	JobsPending        prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ActivitiesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusbot_activities_started_total",
				Help: "Total activities started by kind.",
			},
			[]string{"kind"},
		),
		ActivitiesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusbot_activities_finished_total",
				Help: "Total activities reaching a terminal status by kind and status.",
			},
			[]string{"kind", "status"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusbot_messages_sent_total",
				Help: "Total outbound messages by transport and delivery status.",
			},
			[]string{"transport", "status"},
		),
		TurnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "focusbot_turns_total",
				Help: "Total conversation turns handled by outcome.",
			},
			[]string{"outcome"},
		),
		TurnDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "focusbot_turn_duration_seconds",
				Help:    "Conversation turn processing duration.",
				Buckets: prometheus.DefBuckets,
			},
		),
		JobsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "focusbot_jobs_pending",
				Help: "Number of scheduled auto-finish jobs currently pending.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.ActivitiesStarted,
		m.ActivitiesFinished,
		m.MessagesSent,
		m.TurnsTotal,
		m.TurnDuration,
		m.JobsPending,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for testing).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
