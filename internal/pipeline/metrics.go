package pipeline

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "paramgen"

// metrics are per-run counters written as a node-exporter textfile. Each
// run owns its registry so repeated runs in one process do not accumulate.
type metrics struct {
	registry *prometheus.Registry

	modules     *prometheus.CounterVec
	parameters  prometheus.Counter
	diagnostics *prometheus.CounterVec
	artifacts   *prometheus.CounterVec
	stages      *prometheus.HistogramVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		modules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "modules_total",
			Help:      "Number of modules processed, by outcome status",
		}, []string{"status"}),
		parameters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "parameters_total",
			Help:      "Number of parameters extracted across all modules",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "diagnostics_total",
			Help:      "Number of diagnostics reported, by kind and severity",
		}, []string{"kind", "severity"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "artifacts_total",
			Help:      "Number of artifacts generated, by artifact name",
		}, []string{"artifact"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each per-module stage",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.modules, m.parameters, m.diagnostics, m.artifacts, m.stages)
	return m
}

func (m *metrics) observe(o *Outcome) {
	m.modules.WithLabelValues(o.Status).Inc()
	m.parameters.Add(float64(len(o.Params)))
	for _, d := range o.Diagnostics {
		m.diagnostics.WithLabelValues(string(d.Kind), d.Severity).Inc()
	}
	for _, a := range o.Artifacts {
		m.artifacts.WithLabelValues(a.Kind).Inc()
	}
	for stage, d := range o.Stages {
		m.stages.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *metrics) write(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
