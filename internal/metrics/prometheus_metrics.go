// Package metrics exposes Prometheus instrumentation for the scanner
// driver: documents scanned, responses emitted, per-document scan
// latency, and queue depth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// ScanMetrics is the set of counters and gauges the scanner driver
// updates per document and per response.
type ScanMetrics struct {
	httpHandler func(*fasthttp.RequestCtx)

	documentsScannedTotal *prometheus.CounterVec
	responsesEmittedTotal *prometheus.CounterVec
	scanDuration          prometheus.Histogram
	queueDepth            *prometheus.GaugeVec
}

// NewScanMetrics constructs and registers a ScanMetrics under the given
// namespace (defaulting to "ieql").
func NewScanMetrics(namespace string, logger *zap.Logger) *ScanMetrics {
	if namespace == "" {
		namespace = "ieql"
	}

	m := &ScanMetrics{}

	m.documentsScannedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "documents_scanned_total",
			Help:      "Total number of documents processed by the scanner driver.",
		},
		[]string{"outcome"},
	)

	m.responsesEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "responses_emitted_total",
			Help:      "Total number of query matches emitted as responses.",
		},
		[]string{"query_id"},
	)

	m.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "document_duration_seconds",
			Help:      "Time to fully evaluate one document across all content kinds.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "queue_depth",
			Help:      "Current depth of the input and output queues.",
		},
		[]string{"queue"},
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(m.documentsScannedTotal)
	registry.MustRegister(m.responsesEmittedTotal)
	registry.MustRegister(m.scanDuration)
	registry.MustRegister(m.queueDepth)

	handler := promhttp.HandlerFor(prometheus.Gatherer(registry), promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	m.httpHandler = fasthttpadaptor.NewFastHTTPHandler(handler)

	if logger != nil {
		logger.Info("prometheus metrics initialized", zap.String("namespace", namespace))
	}

	return m
}

// Scan outcome label values.
const (
	OutcomeMatched          = "matched"
	OutcomeNoMatch          = "no_match"
	OutcomeScanFailed       = "scan_failed"
	OutcomeExtractionFailed = "extraction_failed"
)

func (m *ScanMetrics) RecordDocumentScanned(outcome string) {
	m.documentsScannedTotal.WithLabelValues(outcome).Inc()
}

func (m *ScanMetrics) RecordResponseEmitted(queryID string) {
	m.responsesEmittedTotal.WithLabelValues(queryID).Inc()
}

func (m *ScanMetrics) RecordScanDuration(seconds float64) {
	m.scanDuration.Observe(seconds)
}

func (m *ScanMetrics) SetQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
