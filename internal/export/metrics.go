package export

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records export outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	exports  *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics creates the export metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordercsv",
			Subsystem: "export",
			Name:      "runs_total",
			Help:      "Export runs by kind, strategy and outcome.",
		}, []string{"kind", "strategy", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ordercsv",
			Subsystem: "export",
			Name:      "rows_total",
			Help:      "CSV body lines written, by kind and strategy.",
		}, []string{"kind", "strategy"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ordercsv",
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Export duration from slot acquisition to last flush.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"kind", "strategy"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ordercsv",
			Subsystem: "export",
			Name:      "in_flight",
			Help:      "Exports currently streaming.",
		}),
	}
	reg.MustRegister(m.exports, m.rows, m.duration, m.inFlight)
	return m
}

func (m *Metrics) begin() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) end(res Result, err error) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.exports.WithLabelValues(res.Kind, res.Strategy, outcome(err)).Inc()
	m.rows.WithLabelValues(res.Kind, res.Strategy).Add(float64(res.Rows))
	m.duration.WithLabelValues(res.Kind, res.Strategy).Observe(res.Duration.Seconds())
}

// rejected counts an export that never got a slot.
func (m *Metrics) rejected(res Result, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(res.Kind, res.Strategy, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, ErrTooManyExports):
		return "rejected"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "failed"
	}
}
