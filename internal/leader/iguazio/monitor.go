// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package iguazio

import (
	"github.com/cobaltcore-dev/mirror/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus"
)

// Collection of metrics for requests against the leader API.
type Monitor struct {
	// Histogram of request durations, labeled by endpoint.
	requestTimer *prometheus.HistogramVec
}

func NewMonitor(registry *monitoring.Registry) Monitor {
	requestTimer := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mirror_leader_request_duration_seconds",
		Help:    "Duration of requests against the leader API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	registry.MustRegister(requestTimer)
	return Monitor{requestTimer: requestTimer}
}
