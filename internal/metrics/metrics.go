// Corvia CRM - Snapshot, Restore, and Retention Subsystem
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/peterrefaatx/Corvia-CRM-sub000

// Package metrics defines the Prometheus instrumentation for the backup
// subsystem. All collectors register themselves on the default registry via
// promauto and are exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "corvia"
	subsystem = "backup"
)

var (
	// SnapshotsTotal counts snapshot attempts by class and outcome.
	SnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshots_total",
		Help:      "Snapshot attempts by class and outcome",
	}, []string{"class", "status"})

	// SnapshotDuration observes how long successful snapshots take.
	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshot_duration_seconds",
		Help:      "Duration of successful snapshots",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	// SnapshotSizeBytes tracks the size of the most recent snapshot archive.
	SnapshotSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "snapshot_size_bytes",
		Help:      "Size of the most recently written snapshot archive",
	})

	// RestoreJobsTotal counts finished restore jobs by terminal status.
	RestoreJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "restore_jobs_total",
		Help:      "Finished restore jobs by terminal status",
	}, []string{"status"})

	// RestoreDuration observes wall time of completed restore jobs.
	RestoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "restore_duration_seconds",
		Help:      "Duration of completed restore jobs",
		Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
	})

	// MergedRecordsTotal counts restore merge decisions by action.
	MergedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "merged_records_total",
		Help:      "Records handled during restore merges by action",
	}, []string{"action"})

	// RetentionPrunedTotal counts backup sets removed by the retention
	// sweeper, by class.
	RetentionPrunedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "retention_pruned_total",
		Help:      "Backup sets removed by retention, by class",
	}, []string{"class"})

	// CatalogSets tracks the number of catalog entries per class.
	CatalogSets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "catalog_sets",
		Help:      "Catalog entries per backup class",
	}, []string{"class"})

	// CatalogSizeBytes tracks total payload bytes on disk, shared payloads
	// counted once.
	CatalogSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "catalog_size_bytes",
		Help:      "Total payload bytes referenced by the catalog",
	})

	// HTTPRequestsTotal counts API requests by route, method, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "API requests by route, method, and status code",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes API request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "API request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
)
