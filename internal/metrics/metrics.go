// Package metrics exposes the Prometheus instruments used across the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigea_http_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// HTTPDuration observes request latency by path.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sigea_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// GradeMutations counts graded item writes by operation.
	GradeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigea_grade_mutations_total",
		Help: "Graded item creations, updates and deletions.",
	}, []string{"operation"})

	// FinalGradeComputations counts final grade computations by outcome status.
	FinalGradeComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigea_final_grade_computations_total",
		Help: "Final grade computations by resulting status.",
	}, []string{"status"})

	// FinalGradeCacheHits counts final grade cache lookups by result.
	FinalGradeCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigea_final_grade_cache_lookups_total",
		Help: "Final grade cache lookups by hit or miss.",
	}, []string{"result"})

	// NotificationsSent counts grade notification emails by outcome.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sigea_notifications_total",
		Help: "Grade notification emails by delivery outcome.",
	}, []string{"outcome"})
)
