// Package metrics exposes a Prometheus registry for the gateway: a
// request counter per provider/outcome, a stream-duration histogram,
// and a gauge tracking each active target's context-window headroom.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the gateway records, backed by its own
// prometheus.Registry rather than the global default one so tests can
// construct an isolated instance.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	StreamDuration  *prometheus.HistogramVec
	ContextHeadroom *prometheus.GaugeVec
}

// New constructs and registers every metric.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Messages API requests handled, labeled by provider and outcome.",
		}, []string{"provider", "outcome"}),
		StreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_stream_duration_seconds",
			Help:    "Wall-clock duration of a translated upstream stream, labeled by provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ContextHeadroom: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gateway_context_window_headroom_percent",
			Help: "Percentage of a target model's context window still unused, per target.",
		}, []string{"provider", "model"}),
	}

	reg.MustRegister(r.RequestsTotal, r.StreamDuration, r.ContextHeadroom)
	return r
}

// Handler returns the http.Handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveHeadroom records a target's context-window headroom percent
// under the given provider/model labels.
func (r *Registry) ObserveHeadroom(provider, model string, percent float64) {
	r.ContextHeadroom.WithLabelValues(provider, model).Set(percent)
}
