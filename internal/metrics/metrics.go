// Package metrics provides Prometheus metrics for the analytics service.
// Metrics live on a private registry so tests and multiple servers in one
// process do not collide on the default one.
//
// RED pattern for analytics operations:
//   - Rate:     forecasts_total, insights_total, anomalies_detected_total
//   - Errors:   the "failed" outcome of forecasts_total
//   - Duration: analytics_duration_seconds
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "merchantlens"

// Operation labels for DurationSeconds
const (
	OperationAnomalies = "anomalies"
	OperationForecast  = "forecast"
	OperationInsights  = "insights"
	OperationScan      = "scan"
)

// Recorder holds the service collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	// AnomaliesDetected counts flagged days by metric and severity
	AnomaliesDetected *prometheus.CounterVec

	// Forecasts counts forecast requests by method and outcome.
	// outcome: success | failed
	Forecasts *prometheus.CounterVec

	// Insights counts emitted insights by type
	Insights *prometheus.CounterVec

	// DurationSeconds tracks end-to-end latency by operation
	DurationSeconds *prometheus.HistogramVec
}

// New creates a Recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		AnomaliesDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_detected_total",
				Help:      "Total number of anomalies detected by metric and severity.",
			},
			[]string{"metric", "severity"},
		),
		Forecasts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecasts_total",
				Help:      "Total number of forecasts by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		Insights: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "insights_total",
				Help:      "Total number of insights emitted by type.",
			},
			[]string{"type"},
		),
		DurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analytics_duration_seconds",
				Help:      "Duration of analytics operations in seconds.",
				// 1ms -> 2ms -> ... -> ~4s
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
			},
			[]string{"operation"},
		),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveAnomaly counts one detected anomaly
func (r *Recorder) ObserveAnomaly(metric, severity string) {
	if r == nil {
		return
	}
	r.AnomaliesDetected.WithLabelValues(metric, severity).Inc()
}

// ObserveForecast counts one forecast attempt
func (r *Recorder) ObserveForecast(method string, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	r.Forecasts.WithLabelValues(method, outcome).Inc()
}

// ObserveInsight counts one emitted insight
func (r *Recorder) ObserveInsight(insightType string) {
	if r == nil {
		return
	}
	r.Insights.WithLabelValues(insightType).Inc()
}

// ObserveDuration records the time elapsed since start
func (r *Recorder) ObserveDuration(operation string, start time.Time) {
	if r == nil {
		return
	}
	r.DurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
