// Package metrics defines the Prometheus collectors exported at /metrics.
//
// Collectors live on a Registry value rather than the global default
// registry so tests can build an isolated set.
package metrics

import (
	"net/http"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lautdata"

// Registry bundles the application collectors.
type Registry struct {
	reg *prometheus.Registry

	RowsFetched  *prometheus.CounterVec
	RowsDropped  *prometheus.CounterVec
	FetchSeconds *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec
	CacheEvents  *prometheus.CounterVec
	Exports      *prometheus.CounterVec
	ImportedRows *prometheus.CounterVec
}

// New builds a Registry with the Go runtime and process collectors plus
// the application collectors.
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Raw dataset rows read from MongoDB.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Rows excluded during normalization, by dataset and reason.",
		}, []string{"dataset", "reason"}),
		FetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_fetch_seconds",
			Help:      "Time to read a complete dataset.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dataset"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_fetch_errors_total",
			Help:      "Failed dataset reads.",
		}, []string{"dataset"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_cache_events_total",
			Help:      "Dataset cache hits, misses and invalidations.",
		}, []string{"dataset", "event"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Chart exports served, by chart and format.",
		}, []string{"chart", "format"}),
		ImportedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_rows_total",
			Help:      "Rows written by dataset imports.",
		}, []string{"dataset"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RowsFetched,
		r.RowsDropped,
		r.FetchSeconds,
		r.FetchErrors,
		r.CacheEvents,
		r.Exports,
		r.ImportedRows,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveDrops adds a normalization report to the dropped-rows counter.
// A nil Registry is a no-op.
func (r *Registry) ObserveDrops(dataset string, report stats.DropReport) {
	if r == nil {
		return
	}
	for reason, n := range report.Dropped {
		r.RowsDropped.WithLabelValues(dataset, reason).Add(float64(n))
	}
}

// Cache event labels.
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheInvalidate = "invalidate"
)

// CacheEvent counts one cache event. A nil Registry is a no-op.
func (r *Registry) CacheEvent(dataset, event string) {
	if r == nil {
		return
	}
	r.CacheEvents.WithLabelValues(dataset, event).Inc()
}

// Export counts one served export. A nil Registry is a no-op.
func (r *Registry) Export(chart, format string) {
	if r == nil {
		return
	}
	r.Exports.WithLabelValues(chart, format).Inc()
}

// Imported counts rows written by an import. A nil Registry is a no-op.
func (r *Registry) Imported(dataset string, n int) {
	if r == nil {
		return
	}
	r.ImportedRows.WithLabelValues(dataset).Add(float64(n))
}
