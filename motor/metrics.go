package motor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels what happened to one record.
type Outcome string

const (
	OutcomeEmitted        Outcome = "emitted"
	OutcomeDecodeError    Outcome = "decode_error"
	OutcomeNormalizeError Outcome = "normalize_error"
	OutcomeEmitError      Outcome = "emit_error"
)

// Metrics holds the pipeline's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	RecordsTotal      *prometheus.CounterVec
	RecordBytes       prometheus.Histogram
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mirrorlog",
			Name:      "connections_active",
			Help:      "Number of open agent connections",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mirrorlog",
			Name:      "connections_total",
			Help:      "Total accepted agent connections",
		}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mirrorlog",
			Name:      "records_total",
			Help:      "Total records processed by wire shape and outcome",
		}, []string{"shape", "outcome"}),
		RecordBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mirrorlog",
			Name:      "record_bytes",
			Help:      "Size of framed records",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}),
	}
	r.MustRegister(m.ConnectionsActive, m.ConnectionsTotal, m.RecordsTotal, m.RecordBytes)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Inc()
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) record(shape string, outcome Outcome, size int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(shape, string(outcome)).Inc()
	m.RecordBytes.Observe(float64(size))
}
