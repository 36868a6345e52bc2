// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricRateLimitRejections = "http_rate_limit_rejections_total"
	MetricTaskFailures        = "background_task_failures_total"
	MetricListingTransitions  = "listing_transitions_total"
)

// Metrics groups the application counters behind one registry so tests can
// build an isolated set.
type Metrics struct {
	Registry *prometheus.Registry

	RateLimitRejections *prometheus.CounterVec
	TaskFailures        *prometheus.CounterVec
	ListingTransitions  *prometheus.CounterVec
}

// New registers the application counters plus the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitRejections,
			Help: "Requests rejected by the per-IP rate limiter.",
		}, []string{"policy"}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTaskFailures,
			Help: "Best-effort background tasks that returned an error or were dropped.",
		}, []string{"task"}),
		ListingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricListingTransitions,
			Help: "Listing status transitions persisted, by target status.",
		}, []string{"to"}),
	}
	reg.MustRegister(
		m.RateLimitRejections,
		m.TaskFailures,
		m.ListingTransitions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// The helpers below accept a nil receiver so that callers built without
// metrics need no guards.

func (m *Metrics) RateLimited(policy string) {
	if m != nil {
		m.RateLimitRejections.WithLabelValues(policy).Inc()
	}
}

func (m *Metrics) TaskFailed(task string) {
	if m != nil {
		m.TaskFailures.WithLabelValues(task).Inc()
	}
}

func (m *Metrics) Transitioned(to string) {
	if m != nil {
		m.ListingTransitions.WithLabelValues(to).Inc()
	}
}
