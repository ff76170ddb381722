// PhotoMirror - Synchronized Media Library Mirror and Streaming Gateway
// Copyright 2026 PhotoMirror Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/photomirror/photomirror

// Package metrics provides Prometheus instrumentation for PhotoMirror:
// sync progress, local index size, provider request health, circuit
// breaker state, API latency, and streaming throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync metrics
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomirror_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "conflict"
	)

	SyncPagesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomirror_sync_pages_applied_total",
			Help: "Total number of provider pages durably applied",
		},
	)

	SyncItemsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomirror_sync_items_upserted_total",
			Help: "Total number of media items upserted by sync",
		},
	)

	SyncItemsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomirror_sync_items_deleted_total",
			Help: "Total number of media items removed by provider tombstones",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photomirror_sync_duration_seconds",
			Help:    "Duration of complete sync runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	CatalogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomirror_catalog_items",
			Help: "Current number of media items in the local index",
		},
	)

	// Provider metrics
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomirror_provider_request_duration_seconds",
			Help:    "Duration of remote provider API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "list_page", "resolve_access"
	)

	ProviderRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomirror_provider_request_errors_total",
			Help: "Total number of failed provider API calls",
		},
		[]string{"operation"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photomirror_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomirror_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomirror_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomirror_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Streaming metrics
	StreamBytesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomirror_stream_bytes_relayed_total",
			Help: "Total bytes relayed from the remote provider to clients",
		},
		[]string{"mode"}, // "full", "fastseek"
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomirror_active_streams",
			Help: "Current number of in-flight passthrough streams",
		},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomirror_stream_errors_total",
			Help: "Total number of failed stream requests",
		},
		[]string{"mode", "reason"},
	)
)

// RecordAPIRequest records the duration of one API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordProviderRequest records one provider call with its outcome.
func RecordProviderRequest(operation string, duration time.Duration, err error) {
	ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		ProviderRequestErrors.WithLabelValues(operation).Inc()
	}
}
