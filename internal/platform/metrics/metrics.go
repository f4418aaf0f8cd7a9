// Package metrics registers the application's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RecordsCreated    prometheus.Counter
	RecordsUpdated    prometheus.Counter
	RecordsDeleted    prometheus.Counter
	SubmissionsFailed prometheus.Counter
	SearchRequests    prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RecordsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtro_records_created_total",
			Help: "Total number of D-TRO records created.",
		}),
		RecordsUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtro_records_updated_total",
			Help: "Total number of D-TRO records updated.",
		}),
		RecordsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtro_records_deleted_total",
			Help: "Total number of D-TRO records soft-deleted.",
		}),
		SubmissionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtro_submissions_failed_total",
			Help: "Total number of submissions rejected by validation.",
		}),
		SearchRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dtro_search_requests_total",
			Help: "Total number of search requests served.",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtro_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
