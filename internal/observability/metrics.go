// Package observability defines the Prometheus metrics exported by the feed
// server.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_feed"

type Metrics struct {
	// Ingestion.
	Polls          *prometheus.CounterVec // labels: source, outcome={success,error}
	PollDuration   prometheus.Histogram
	AlertsUpserted prometheus.Counter
	AlertsSkipped  prometheus.Counter
	AlertsExpired  prometheus.Counter
	JobErrors      prometheus.Counter
	ActiveAlerts   prometheus.Gauge

	// HTTP surface.
	Requests          *prometheus.CounterVec // labels: route, code
	StreamSubscribers prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting returns unregistered metrics so tests can create as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Upstream polls by source and outcome.",
		}, []string{"source", "outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one upstream request including decoding.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		AlertsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_upserted_total",
			Help:      "New or re-issued alerts written to storage.",
		}),
		AlertsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_skipped_total",
			Help:      "Polled alerts whose sent time was unchanged.",
		}),
		AlertsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Alerts removed after their expiration time.",
		}),
		JobErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_job_errors_total",
			Help:      "Ingestion jobs that failed to store an alert.",
		}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_alerts",
			Help:      "Alerts in the last published snapshot.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Open alert stream connections.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Polls,
		m.PollDuration,
		m.AlertsUpserted,
		m.AlertsSkipped,
		m.AlertsExpired,
		m.JobErrors,
		m.ActiveAlerts,
		m.Requests,
		m.StreamSubscribers,
	}
}
