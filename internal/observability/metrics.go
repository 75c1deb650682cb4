package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "swiftfs"

// Metrics are the Prometheus collectors exported by the server.
type Metrics struct {
	registry *prometheus.Registry

	// EntriesListed counts listing entries served, by kind.
	EntriesListed *prometheus.CounterVec

	// ListFailures counts listings that ended in an error, by error code.
	ListFailures *prometheus.CounterVec

	// HTTPRequests counts handled requests, by route and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes request latency, by route.
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry that also
// carries the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EntriesListed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "list_entries_total",
			Help:      "Listing entries served, by kind.",
		}, []string{"kind"}),
		ListFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "list_failures_total",
			Help:      "Listings that ended in an error, by error code.",
		}, []string{"code"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled, by route and status.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.EntriesListed,
		m.ListFailures,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
