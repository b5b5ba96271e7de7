package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_hub_http_requests_total",
			Help: "HTTP requests by route pattern, method and status.",
		},
		[]string{"route", "method", "status"},
	)
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessment_hub_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "assessment_hub_http_requests_in_flight",
		Help: "Requests currently being served.",
	})

	AssessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_hub_assessments_total",
			Help: "Report generations by tool and outcome.",
		},
		[]string{"tool", "status", "error_kind"},
	)
	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessment_hub_inference_duration_seconds",
			Help:    "Remote inference latency by tool and endpoint kind.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"tool", "kind"},
	)
)

// ObserveAssessment records one report generation.
func ObserveAssessment(tool, kind, errorKind string, d time.Duration) {
	status := "success"
	if errorKind != "" {
		status = "failed"
	}
	AssessmentsTotal.WithLabelValues(tool, status, errorKind).Inc()
	InferenceDuration.WithLabelValues(tool, kind).Observe(d.Seconds())
}

// Metrics tracks request metrics. Labels use the chi route pattern so ids
// in the path do not blow up cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPInFlight.Inc()
		defer HTTPInFlight.Dec()
		start := time.Now()
		wrapped := wrapWriter(w)

		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// MetricsHandler exposes the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
