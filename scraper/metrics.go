package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	TitlesTotal       prometheus.Counter
	DuplicatesTotal   prometheus.Counter
	RetriesTotal      prometheus.Counter
	PagesFetchedTotal prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	titles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_titles_total",
			Help: "Total number of unique titles collected.",
		},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_duplicate_titles_total",
			Help: "Total number of titles suppressed as duplicates.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_retries_total",
			Help: "Total number of page retry attempts.",
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_pages_fetched_total",
			Help: "Total number of result pages fetched successfully.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Total number of crawler errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, titles, duplicates, retries, pages, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		TitlesTotal:       titles,
		DuplicatesTotal:   duplicates,
		RetriesTotal:      retries,
		PagesFetchedTotal: pages,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncTitles increments the unique titles counter.
func (m *Metrics) IncTitles() {
	if m == nil {
		return
	}
	m.TitlesTotal.Inc()
}

// IncDuplicates increments the suppressed duplicates counter.
func (m *Metrics) IncDuplicates() {
	if m == nil {
		return
	}
	m.DuplicatesTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncPages increments the fetched pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetchedTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
