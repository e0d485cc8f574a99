package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aegis"

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	Matches          *prometheus.CounterVec
	Scrubs           *prometheus.CounterVec
	Restores         *prometheus.CounterVec
	SemanticFailures *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	RateLimited      prometheus.Counter
	WSClients        prometheus.Gauge
	BatchRecords     *prometheus.CounterVec
	ScrubLatency     prometheus.Histogram
}

// New registers the instruments on a fresh registry, so several instances
// (tests, CLI runs) never collide on the default one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pii_matches_total",
			Help:      "Redacted PII matches by type and source.",
		}, []string{"type", "source"}),
		Scrubs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrubs_total",
			Help:      "Scrub operations by outcome.",
		}, []string{"outcome"}),
		Restores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Restore operations by outcome.",
		}, []string{"outcome"}),
		SemanticFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "semantic_failures_total",
			Help:      "Semantic source failures that fell back to structural detection.",
		}, []string{"stage"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket event clients.",
		}),
		BatchRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_records_total",
			Help:      "Batch records processed by outcome.",
		}, []string{"outcome"}),
		ScrubLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrub_latency_ms",
			Help:      "Scrub latency in milliseconds, semantic detection included.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
}

// ObserveScrubLatency records a scrub duration
func (m *Metrics) ObserveScrubLatency(d time.Duration) {
	m.ScrubLatency.Observe(float64(d.Microseconds()) / 1000)
}

// Registry exposes the underlying registry for gathering in tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves this instance's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
