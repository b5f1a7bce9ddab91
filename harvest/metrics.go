package harvest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the harvester.
type Metrics struct {
	Registry         *prometheus.Registry
	SourceCallsTotal *prometheus.CounterVec
	SourceCallTime   prometheus.Histogram
	ItemsTotal       *prometheus.CounterVec
	PagesTotal       prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	sourceCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_source_calls_total",
			Help: "Total list and detail calls issued to the source.",
		},
		[]string{"kind"},
	)
	sourceCallTime := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvest_source_call_seconds",
			Help:    "Source call latency, including rate limiter waits.",
			Buckets: prometheus.DefBuckets,
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_items_total",
			Help: "Total items processed by outcome.",
		},
		[]string{"result"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harvest_pages_total",
			Help: "Total catalog pages visited.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_errors_total",
			Help: "Total harvest errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(sourceCalls, sourceCallTime, items, pages, errorsTotal)

	return &Metrics{
		Registry:         registry,
		SourceCallsTotal: sourceCalls,
		SourceCallTime:   sourceCallTime,
		ItemsTotal:       items,
		PagesTotal:       pages,
		ErrorsTotal:      errorsTotal,
	}
}

// IncSourceCall increments the source call counter for a kind.
func (m *Metrics) IncSourceCall(kind string) {
	if m == nil {
		return
	}
	m.SourceCallsTotal.WithLabelValues(kind).Inc()
}

// ObserveSourceCall records a source call duration.
func (m *Metrics) ObserveSourceCall(d time.Duration) {
	if m == nil {
		return
	}
	m.SourceCallTime.Observe(d.Seconds())
}

// IncItem increments the item counter for an outcome label.
func (m *Metrics) IncItem(result string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(result).Inc()
}

// IncPage increments the pages counter.
func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
