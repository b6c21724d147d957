// Package metrics exposes Prometheus counters for feedback sessions and the
// commands run from the web UI.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcp_feedback"

// Collector owns a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	SessionsCreated   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	Commands          *prometheus.CounterVec
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of feedback sessions created",
		}),
		SessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of feedback sessions that ended, by outcome",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of feedback sessions currently open",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of commands run from the web UI, by result",
		}, []string{"result"}),
	}
	c.registry.MustRegister(c.SessionsCreated, c.SessionsCompleted, c.ActiveSessions, c.Commands)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// The methods below are nil-safe so callers can run without metrics.

func (c *Collector) SessionCreated() {
	if c == nil {
		return
	}
	c.SessionsCreated.Inc()
	c.ActiveSessions.Inc()
}

func (c *Collector) SessionCompleted(outcome string) {
	if c == nil {
		return
	}
	c.SessionsCompleted.WithLabelValues(outcome).Inc()
}

// SessionClosed marks a session as no longer open, however it ended.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.ActiveSessions.Dec()
}

func (c *Collector) CommandFinished(result string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(result).Inc()
}
