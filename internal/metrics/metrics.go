// Package metrics exposes Prometheus collectors for the portal and the orchestrator agent.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry        *prometheus.Registry
	sends           *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	degraded        *prometheus.CounterVec
	agentHealth     *prometheus.GaugeVec
}

// New creates collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Send operations by outcome (error kind or success).",
		}, []string{"outcome"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Persistence failures after a successful agent answer.",
		}, []string{"class"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_degraded_total",
			Help:      "Orchestrator answers produced by the fallback branch.",
		}, []string{"alias", "reason"}),
		agentHealth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_healthy",
			Help:      "1 when the agent's last metadata fetch succeeded.",
		}, []string{"alias"}),
	}
	m.registry.MustRegister(
		m.sends, m.persistFailures, m.degraded, m.agentHealth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveSend(outcome string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePersistFailure(class string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(class).Inc()
}

func (m *Metrics) ObserveDegraded(alias, reason string) {
	if m == nil {
		return
	}
	m.degraded.WithLabelValues(alias, reason).Inc()
}

func (m *Metrics) SetAgentHealth(alias string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.agentHealth.WithLabelValues(alias).Set(v)
}
