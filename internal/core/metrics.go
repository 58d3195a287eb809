// AngelaMos | 2026
// metrics.go

package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "reportriser"

type Metrics struct {
	registry *prometheus.Registry

	ReportsGenerated   *prometheus.CounterVec
	AdmissionsDenied   *prometheus.CounterVec
	VitalsFallbacks    prometheus.Counter
	VitalsCacheHits    *prometheus.CounterVec
	ReportDuration     prometheus.Histogram
	HTTPRequestLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ReportsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reports_generated_total",
			Help:      "Reports generated, by subscription tier.",
		}, []string{"tier"}),
		AdmissionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "admissions_denied_total",
			Help:      "Quota admissions denied, by action and tier.",
		}, []string{"action", "tier"}),
		VitalsFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vitals_fallbacks_total",
			Help:      "Vitals measurements replaced by the fallback reading.",
		}),
		VitalsCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "vitals_cache_lookups_total",
			Help:      "Vitals cache lookups, by layer and result.",
		}, []string{"layer", "result"}),
		ReportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "report_generation_seconds",
			Help:      "End-to-end report generation latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		HTTPRequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ReportsGenerated,
		m.AdmissionsDenied,
		m.VitalsFallbacks,
		m.VitalsCacheHits,
		m.ReportDuration,
		m.HTTPRequestLatency,
	)

	return m
}

// Register adds collectors owned by other components, such as pool stats.
func (m *Metrics) Register(cs ...prometheus.Collector) {
	m.registry.MustRegister(cs...)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}
