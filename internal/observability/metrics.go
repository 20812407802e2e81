// Package observability provides Prometheus metrics for the AutoLabel service.
package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingestion outcome label values
const (
	OutcomeRecorded = "recorded"
	OutcomeRejected = "rejected"
)

// Classification status label values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry

	imagesIngestedTotal    *prometheus.CounterVec
	classificationsTotal   *prometheus.CounterVec
	classificationDuration prometheus.Histogram
	labelUpdatesTotal      prometheus.Counter
	exportsTotal           prometheus.Counter
}

// NewMetrics creates a new Metrics instance with its own registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		imagesIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autolabel_images_ingested_total",
			Help: "Per-file ingestion outcomes, partitioned by outcome.",
		}, []string{"outcome"}),
		classificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "autolabel_classifications_total",
			Help: "Classification oracle invocations, partitioned by status.",
		}, []string{"status"}),
		classificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autolabel_classification_duration_seconds",
			Help:    "Duration of classification oracle invocations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		labelUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autolabel_label_updates_total",
			Help: "Human label updates applied through the verification workflow.",
		}),
		exportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autolabel_exports_total",
			Help: "Export snapshots produced.",
		}),
	}

	collectors := []prometheus.Collector{
		m.imagesIngestedTotal,
		m.classificationsTotal,
		m.classificationDuration,
		m.labelUpdatesTotal,
		m.exportsTotal,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metrics collector: %w", err)
		}
	}

	return m, nil
}

// RecordIngestOutcome counts one per-file ingestion outcome.
func (m *Metrics) RecordIngestOutcome(outcome string) {
	if m == nil {
		return
	}
	m.imagesIngestedTotal.WithLabelValues(outcome).Inc()
}

// RecordClassification counts one oracle invocation and its duration.
func (m *Metrics) RecordClassification(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.classificationsTotal.WithLabelValues(status).Inc()
	m.classificationDuration.Observe(duration.Seconds())
}

// RecordLabelUpdate counts one verification workflow update.
func (m *Metrics) RecordLabelUpdate() {
	if m == nil {
		return
	}
	m.labelUpdatesTotal.Inc()
}

// RecordExport counts one export snapshot.
func (m *Metrics) RecordExport() {
	if m == nil {
		return
	}
	m.exportsTotal.Inc()
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
