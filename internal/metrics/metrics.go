// Quakewatch - Seismic Event Feed Ingestion and Storage
// Copyright 2026 Quakewatch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/iokt/quakewatch

// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline: feed fetches, publishes, consumed messages, and reconciliation
// outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Feed client metrics
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Duration of feed HTTP fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of failed feed fetches",
		},
		[]string{"error_type"}, // "http", "status", "decode"
	)

	FeedEventsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_fetched_total",
			Help: "Total number of events returned by the feed",
		},
	)

	// Publisher metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published to the stream",
		},
	)

	PublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
	)

	// Reconciler metrics
	MessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_consumed_total",
			Help: "Total number of messages received from the stream",
		},
	)

	MessageParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "message_parse_failures_total",
			Help: "Total number of messages dropped due to decode failure",
		},
	)

	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Total reconciliation outcomes by kind",
		},
		[]string{"outcome"}, // "create", "update", "storage_error"
	)

	// Scheduler metrics
	IngestCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_cycles_total",
			Help: "Total ingestion cycles by result",
		},
		[]string{"result"}, // "ok", "error"
	)
)

// ObserveFeedFetch records the duration of a completed feed fetch.
func ObserveFeedFetch(start time.Time) {
	FeedFetchDuration.Observe(time.Since(start).Seconds())
}

// RecordReconcileCreate counts a reconciliation that inserted a new row.
func RecordReconcileCreate() { ReconcileOutcomes.WithLabelValues("create").Inc() }

// RecordReconcileUpdate counts a reconciliation that took the update path.
func RecordReconcileUpdate() { ReconcileOutcomes.WithLabelValues("update").Inc() }

// RecordStorageError counts a reconciliation dropped on a storage failure.
func RecordStorageError() { ReconcileOutcomes.WithLabelValues("storage_error").Inc() }

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
