// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package follower

import (
	"github.com/cobaltcore-dev/mirror/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

// Collection of Prometheus metrics for the projects sync.
type Monitor struct {
	// Histogram of the duration of sync runs.
	syncTimer prometheus.Histogram
	// Number of projects reported by the leader in the last sync run.
	syncedObjects prometheus.Gauge
	// Number of projects archived because the leader no longer reports them.
	archivedObjects prometheus.Counter
	// Number of sync runs that failed.
	syncFailures prometheus.Counter
}

func NewSyncMonitor(registry *monitoring.Registry) Monitor {
	syncTimer := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mirror_sync_duration_seconds",
		Help:    "Duration of project sync runs.",
		Buckets: prometheus.DefBuckets,
	})
	syncedObjects := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mirror_sync_objects",
		Help: "Number of projects reported by the leader in the last sync run.",
	})
	archivedObjects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_sync_archived_total",
		Help: "Number of projects archived because the leader stopped reporting them.",
	})
	syncFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mirror_sync_failures_total",
		Help: "Number of project sync runs that failed.",
	})
	registry.MustRegister(
		syncTimer,
		syncedObjects,
		archivedObjects,
		syncFailures,
	)
	return Monitor{
		syncTimer:       syncTimer,
		syncedObjects:   syncedObjects,
		archivedObjects: archivedObjects,
		syncFailures:    syncFailures,
	}
}
