// Package metrics exposes edge decision counters on a private Prometheus registry.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records edge decisions and classifier call latency.
type Collector struct {
	decisionsTotal     *prometheus.CounterVec
	classifierErrors   *prometheus.CounterVec
	classifierDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers the edge metrics under namespace ("veil_edge" when empty).
func New(namespace string) (*Collector, error) {
	if namespace == "" {
		namespace = "veil_edge"
	}
	registry := prometheus.NewRegistry()

	c := &Collector{registry: registry}

	c.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Edge decisions by outcome, classification and application mode",
		},
		[]string{"outcome", "classification", "mode"},
	)

	c.classifierErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "errors_total",
			Help:      "Failed classification calls by kind; each one fails open",
		},
		[]string{"kind"},
	)

	c.classifierDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "duration_seconds",
			Help:      "Classification call duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2, 3},
		},
		[]string{"result"},
	)

	for _, collector := range []prometheus.Collector{c.decisionsTotal, c.classifierErrors, c.classifierDuration} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// RecordDecision counts one terminal decision.
func (c *Collector) RecordDecision(outcome, classification, mode string) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(outcome, classification, mode).Inc()
}

// RecordClassifierCall observes a classification call. kind is "none" on success.
func (c *Collector) RecordClassifierCall(kind string, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if kind != "none" {
		result = "error"
		c.classifierErrors.WithLabelValues(kind).Inc()
	}
	c.classifierDuration.WithLabelValues(result).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so process-level collectors can
// be added next to the edge metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
