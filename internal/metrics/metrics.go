// Package metrics defines the Prometheus instruments for fan-out calls and
// writes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered by New.
type Metrics struct {
	registry *prometheus.Registry

	// FanoutDuration observes the wall time of a whole multi-account
	// request, by entry point.
	FanoutDuration *prometheus.HistogramVec

	// AccountCalls counts per-account backend calls by entry point,
	// provider kind and outcome (ok, unauthenticated, timeout, ...).
	AccountCalls *prometheus.CounterVec

	// AccountCallDuration observes single backend calls.
	AccountCallDuration *prometheus.HistogramVec

	// Writes counts outbound actions by entry point and outcome.
	Writes *prometheus.CounterVec

	// RoutingDecisions counts automatic account selection by reason.
	RoutingDecisions *prometheus.CounterVec

	// ProbeFailures counts credential probes that found no usable token.
	ProbeFailures *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, so several instances
// can coexist in tests.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FanoutDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calendar_mcp_fanout_duration_seconds",
				Help:    "Duration of multi-account requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AccountCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_mcp_account_calls_total",
				Help: "Total number of per-account backend calls",
			},
			[]string{"operation", "provider", "outcome"},
		),
		AccountCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "calendar_mcp_account_call_duration_seconds",
				Help:    "Duration of per-account backend calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider"},
		),
		Writes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_mcp_writes_total",
				Help: "Total number of outbound actions",
			},
			[]string{"operation", "outcome"},
		),
		RoutingDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_mcp_routing_decisions_total",
				Help: "Total number of automatic account selections",
			},
			[]string{"reason"},
		),
		ProbeFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calendar_mcp_probe_failures_total",
				Help: "Total number of failed credential probes",
			},
			[]string{"account"},
		),
	}
}

// ObserveCall records one per-account call.
func (m *Metrics) ObserveCall(operation, provider, outcome string, took time.Duration) {
	m.AccountCalls.WithLabelValues(operation, provider, outcome).Inc()
	m.AccountCallDuration.WithLabelValues(operation, provider).Observe(took.Seconds())
}

// Registry exposes the underlying registry for gathering in tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
