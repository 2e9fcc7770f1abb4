// Package metrics is the Prometheus registry this worker exposes: vault
// call counts and latency, broker message counts, and the in-flight job
// gauge. Trimmed from the teacher's much broader HTTP/DB/cache monitoring
// surface. Only the in-flight gauge is updated (by internal/inflight); the
// vault and broker collectors are registered and exported but nothing in
// this module records into them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every metric this worker registers.
type Metrics struct {
	VaultCalls        *prometheus.CounterVec
	VaultCallDuration *prometheus.HistogramVec
	BrokerMessages    *prometheus.CounterVec
	InFlightJobs      prometheus.Gauge

	registry *prometheus.Registry
}

// New builds a Metrics instance backed by its own registry (not the global
// default, so tests can build more than one without collisions).
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		VaultCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawlerd",
			Name:      "vault_calls_total",
			Help:      "Vault HTTP calls by vault and outcome.",
		}, []string{"vault", "outcome"}),
		VaultCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crawlerd",
			Name:      "vault_call_duration_seconds",
			Help:      "Vault HTTP call latency by vault.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"vault"}),
		BrokerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crawlerd",
			Name:      "broker_messages_total",
			Help:      "Broker messages by routing key and direction.",
		}, []string{"routing_key", "direction"}),
		InFlightJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crawlerd",
			Name:      "in_flight_jobs",
			Help:      "Number of ProcessOrders currently being handled.",
		}),
		registry: registry,
	}

	registry.MustRegister(m.VaultCalls, m.VaultCallDuration, m.BrokerMessages, m.InFlightJobs)
	return m
}

// Handler returns the HTTP handler to mount at the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
