// Package observability provides Prometheus metrics, HTTP middleware,
// and the management endpoints (health, readiness, metrics) for the
// deployment queue service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// APIBuckets defines histogram buckets for API request latencies,
// ranging from 5ms to 10s.
var APIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployq_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: APIBuckets,
		},
		[]string{"method", "route"},
	)

	// DeploymentsCreatedTotal counts deployments entering the queue.
	DeploymentsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_deployments_created_total",
			Help: "Deployments created",
		},
		[]string{"organisation", "provider", "trigger"},
	)

	// DeploymentsUpdatedTotal counts deployment status transitions.
	DeploymentsUpdatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_deployments_updated_total",
			Help: "Deployment status updates",
		},
		[]string{"organisation", "status"},
	)

	// DeploymentsSkippedTotal counts deployments retired by auto-skip.
	DeploymentsSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_deployments_skipped_total",
			Help: "Deployments auto-skipped",
		},
		[]string{"organisation"},
	)

	// RollbacksTotal counts rollback deployments created.
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_rollbacks_total",
			Help: "Rollback deployments created",
		},
		[]string{"organisation", "provider"},
	)

	// AuthRequestsTotal counts authentication attempts by method and outcome.
	AuthRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deployq_auth_requests_total",
			Help: "Authentication attempts",
		},
		[]string{"method", "success"},
	)

	// StoreQueryDuration records storage operation latency in seconds.
	StoreQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deployq_store_query_duration_seconds",
			Help:    "Storage operation duration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// ObserveStoreQuery records the elapsed time of a storage operation.
// Meant to be deferred at the top of a store method:
//
//	defer observability.ObserveStoreQuery("insert", time.Now())
func ObserveStoreQuery(operation string, start time.Time) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		DeploymentsCreatedTotal,
		DeploymentsUpdatedTotal,
		DeploymentsSkippedTotal,
		RollbacksTotal,
		AuthRequestsTotal,
		StoreQueryDuration,
	)
}
