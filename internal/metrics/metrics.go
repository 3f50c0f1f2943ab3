// Package metrics defines Prometheus collectors for the backup engine and
// the HTTP surface. All collectors are registered on the default registry
// via promauto and exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackupsCreatedTotal counts backup records created, by trigger type.
	BackupsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxonvault_backups_created_total",
		Help: "Total number of backup records created",
	}, []string{"trigger"})

	// RestoresTotal counts restore attempts by outcome.
	RestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxonvault_restores_total",
		Help: "Total number of restore operations",
	}, []string{"status"})

	// IntegrityFailuresTotal counts checksum or container verification
	// failures, by the operation that detected them.
	IntegrityFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxonvault_integrity_failures_total",
		Help: "Total number of integrity verification failures",
	}, []string{"operation"})

	// RetentionEvictionsTotal counts backup records deleted by retention.
	RetentionEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxonvault_retention_evictions_total",
		Help: "Total number of backup records evicted by retention",
	})

	// BackupPayloadBytes observes compressed payload sizes.
	BackupPayloadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taxonvault_backup_payload_bytes",
		Help:    "Compressed backup payload size in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taxonvault_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taxonvault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
