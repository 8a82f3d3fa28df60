// Package metrics holds the prometheus collectors for settlement outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation labels.
const (
	OpSettlement = "settlement"
	OpNoShow     = "noshow"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	publishErrors prometheus.Counter
	moved         *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_operations_total",
				Help: "Settlement and no-show operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "settlement_operation_duration_seconds",
				Help:    "Duration of settlement operations including retries",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_retries_total",
				Help: "Attempts retried after a transient conflict",
			},
			[]string{"operation"},
		),
		publishErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "settlement_event_publish_errors_total",
				Help: "Events that could not be published after commit",
			},
		),
		moved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlement_amount_moved_total",
				Help: "Rupees moved between wallets",
			},
			[]string{"operation"},
		),
		gatherer: reg,
	}
}

// Observe records one finished operation. outcome is "success" or an error kind.
func (m *Metrics) Observe(op, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *Metrics) Retry(op string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(op).Inc()
}

func (m *Metrics) PublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

func (m *Metrics) Moved(op string, amount float64) {
	if m == nil {
		return
	}
	m.moved.WithLabelValues(op).Add(amount)
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
