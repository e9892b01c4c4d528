// Package metrics exposes Prometheus collectors for sync, backfill and search.
// All methods are safe on a nil *Metrics so components can run unobserved.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	syncOps        *prometheus.CounterVec
	backfillChunks *prometheus.CounterVec
	searchDuration prometheus.Histogram
}

// New creates the collectors on a dedicated registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_sync_operations_total",
			Help: "Customer synchronizer operations by operation and result.",
		}, []string{"op", "result"}),
		backfillChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_backfill_chunks_total",
			Help: "Backfill chunks processed by phase and result.",
		}, []string{"phase", "result"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crm_search_duration_seconds",
			Help:    "End-to-end customer search latency including list filtering.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.syncOps,
		m.backfillChunks,
		m.searchDuration,
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

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Result values used as label values.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultIndexFailed = "index_failed"
)

func (m *Metrics) ObserveSync(op, result string) {
	if m == nil {
		return
	}
	m.syncOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ObserveBackfillChunk(phase string, failed bool) {
	if m == nil {
		return
	}
	result := ResultOK
	if failed {
		result = ResultError
	}
	m.backfillChunks.WithLabelValues(phase, result).Inc()
}

func (m *Metrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
}
