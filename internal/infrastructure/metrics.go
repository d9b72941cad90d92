package infrastructure

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	UploadsTotal    *prometheus.CounterVec
	ReportsTotal    *prometheus.CounterVec
	ChartsRendered  prometheus.Counter
	ReportDuration  prometheus.Histogram
	CacheHitsTotal  prometheus.Counter
	CacheMissTotal  prometheus.Counter
	ActiveSessions  prometheus.Gauge
}

// NewMetrics creates a metrics bundle on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportlab",
			Name:      "uploads_total",
			Help:      "Number of file uploads, by outcome.",
		}, []string{"outcome"}),
		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportlab",
			Name:      "reports_total",
			Help:      "Number of report generations, by outcome.",
		}, []string{"outcome"}),
		ChartsRendered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reportlab",
			Name:      "charts_rendered_total",
			Help:      "Number of chart images rendered.",
		}),
		ReportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reportlab",
			Name:      "report_duration_seconds",
			Help:      "Wall time of a full report generation.",
			Buckets:   prometheus.DefBuckets,
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reportlab",
			Name:      "parse_cache_hits_total",
			Help:      "Parsed-upload cache hits.",
		}),
		CacheMissTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reportlab",
			Name:      "parse_cache_misses_total",
			Help:      "Parsed-upload cache misses.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "reportlab",
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
	}
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
