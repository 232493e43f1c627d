package metrics

import (
	"time"

	"shopify-improvement-core/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics records the improvement workflow and collection store activity.
// A nil *WorkflowMetrics is a no-op.
type WorkflowMetrics struct {
	submitted          *prometheus.CounterVec
	improvements       prometheus.Counter
	decisions          *prometheus.CounterVec
	catalogFailures    prometheus.Counter
	enhancementLatency prometheus.Histogram
	collectionWrites   *prometheus.CounterVec
}

var _ ports.WorkflowObserver = (*WorkflowMetrics)(nil)

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	m := &WorkflowMetrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "improvement_products_submitted_total",
			Help: "Products submitted for improvement by outcome.",
		}, []string{"outcome"}),
		improvements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "improvement_improvements_created_total",
			Help: "Improvements created and awaiting review.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "improvement_decisions_total",
			Help: "Review decisions by resulting status.",
		}, []string{"status"}),
		catalogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "improvement_catalog_update_failures_total",
			Help: "Approved improvements that could not be pushed to the catalog.",
		}),
		enhancementLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "improvement_enhancement_duration_seconds",
			Help:    "Duration of enhancement service calls in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		collectionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_collection_writes_total",
			Help: "Collection replace operations by collection and result.",
		}, []string{"collection", "result"}),
	}
	reg.MustRegister(m.submitted, m.improvements, m.decisions, m.catalogFailures, m.enhancementLatency, m.collectionWrites)
	return m
}

func (m *WorkflowMetrics) IncSubmitted(outcome string) {
	if m == nil || m.submitted == nil {
		return
	}
	m.submitted.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WorkflowMetrics) IncImprovementCreated() {
	if m == nil || m.improvements == nil {
		return
	}
	m.improvements.Inc()
}

func (m *WorkflowMetrics) IncDecision(status string) {
	if m == nil || m.decisions == nil {
		return
	}
	m.decisions.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *WorkflowMetrics) IncCatalogFailure() {
	if m == nil || m.catalogFailures == nil {
		return
	}
	m.catalogFailures.Inc()
}

// ObserveEnhancement records the duration of one enhancement call.
func (m *WorkflowMetrics) ObserveEnhancement(d time.Duration) {
	if m == nil || m.enhancementLatency == nil {
		return
	}
	m.enhancementLatency.Observe(d.Seconds())
}

// ObserveCollectionWrite implements storage.WriteObserver.
func (m *WorkflowMetrics) ObserveCollectionWrite(collection string, err error) {
	if m == nil || m.collectionWrites == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.collectionWrites.WithLabelValues(normalizeLabel(collection), result).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
