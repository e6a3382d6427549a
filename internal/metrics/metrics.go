// Package metrics exposes Prometheus collectors for document processing.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docverify"

type Metrics struct {
	registry *prometheus.Registry

	documentsTotal     *prometheus.CounterVec
	documentDuration   *prometheus.HistogramVec
	documentsInFlight  prometheus.Gauge
	overallConfidence  *prometheus.HistogramVec
	fieldConfidence    *prometheus.HistogramVec
	ruleFailuresTotal  *prometheus.CounterVec
	extractionsTotal   *prometheus.CounterVec
	extractionAttempts *prometheus.HistogramVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

var confidenceBuckets = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		documentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "documents_total",
				Help:      "Processed documents by type and status.",
			},
			[]string{"doc_type", "status"},
		),
		documentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "document_duration_seconds",
				Help:      "Document processing duration in seconds by status.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		documentsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "documents_in_flight",
				Help:      "Documents currently being processed.",
			},
		),
		overallConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "score",
				Name:      "overall_confidence",
				Help:      "Document-level confidence by type.",
				Buckets:   confidenceBuckets,
			},
			[]string{"doc_type"},
		),
		fieldConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "score",
				Name:      "field_confidence",
				Help:      "Per-field confidence by type.",
				Buckets:   confidenceBuckets,
			},
			[]string{"doc_type"},
		),
		ruleFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validate",
				Name:      "rule_failures_total",
				Help:      "Failed validation rules by type and rule.",
			},
			[]string{"doc_type", "rule"},
		),
		extractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "extract",
				Name:      "extractions_total",
				Help:      "Field extractions by extractor and outcome.",
			},
			[]string{"extractor", "outcome"},
		),
		extractionAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "extract",
				Name:      "attempts",
				Help:      "Attempts needed per field extraction.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			},
			[]string{"extractor"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP API requests by route and status code.",
			},
			[]string{"route", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP API request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		m.documentsTotal, m.documentDuration, m.documentsInFlight,
		m.overallConfidence, m.fieldConfidence, m.ruleFailuresTotal,
		m.extractionsTotal, m.extractionAttempts,
		m.httpRequestsTotal, m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) StartDocument() {
	if m == nil {
		return
	}
	m.documentsInFlight.Inc()
}

// FinishDocument records a processed document; failed runs use the "error" doc type
func (m *Metrics) FinishDocument(docType string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.documentsInFlight.Dec()

	status := "success"
	if failed {
		status = "error"
	}
	m.documentsTotal.WithLabelValues(docType, status).Inc()
	m.documentDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *Metrics) ObserveScores(docType string, overall float64, fields []float64) {
	if m == nil {
		return
	}
	m.overallConfidence.WithLabelValues(docType).Observe(overall)
	for _, c := range fields {
		m.fieldConfidence.WithLabelValues(docType).Observe(c)
	}
}

func (m *Metrics) RuleFailed(docType, rule string) {
	if m == nil {
		return
	}
	m.ruleFailuresTotal.WithLabelValues(docType, rule).Inc()
}

// ObserveExtraction records one field extraction; outcome is ok, cached or failed
func (m *Metrics) ObserveExtraction(extractor, outcome string, attempts int) {
	if m == nil {
		return
	}
	m.extractionsTotal.WithLabelValues(extractor, outcome).Inc()
	if outcome != "cached" {
		m.extractionAttempts.WithLabelValues(extractor).Observe(float64(attempts))
	}
}

func (m *Metrics) ObserveHTTP(route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
