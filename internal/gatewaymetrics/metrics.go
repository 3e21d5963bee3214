// Package gatewaymetrics holds the gateway's prometheus collectors.
package gatewaymetrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is constructed once and shared; collectors are safe for concurrent
// use.
type Metrics struct {
	RequestsInFlight prometheus.Gauge
	StageRejects     *prometheus.CounterVec
	RateLimitTotal   *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	ShutdownDrain    *prometheus.CounterVec
}

// New registers the gateway collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_requests_in_flight",
			Help: "Current number of in-flight HTTP requests.",
		}),
		StageRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_stage_reject_total",
			Help: "Total requests rejected, by pipeline stage.",
		}, []string{"stage"}),
		RateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_rate_limit_total",
			Help: "Total rate limit decisions by outcome.",
		}, []string{"outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_upstream_requests_total",
			Help: "Total upstream requests by outcome.",
		}, []string{"outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_upstream_latency_seconds",
			Help:    "Observed upstream request latency by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		ShutdownDrain: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_shutdown_drain_total",
			Help: "Graceful shutdown drain attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.RequestsInFlight,
		m.StageRejects,
		m.RateLimitTotal,
		m.UpstreamRequests,
		m.UpstreamLatency,
		m.ShutdownDrain,
	)
	return m
}

// NormalizeLabel lowercases a label value and collapses anything outside
// [a-z0-9] to underscores, falling back when nothing survives.
func NormalizeLabel(value, fallback string) string {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if out == "" {
		return fallback
	}
	return out
}
