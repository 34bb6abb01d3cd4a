/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes prometheus metrics and OTLP tracing for the daemon.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juke_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "juke_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "juke_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// APIWebSocketConnections gauges open websocket clients.
	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "juke_api_websocket_connections",
		Help: "Open websocket connections.",
	})

	// CommandsProcessed counts worker commands drained from queues.
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juke_worker_commands_total",
		Help: "Commands processed per worker.",
	}, []string{"worker"})

	// CommandsDropped counts commands dropped on queue saturation.
	CommandsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juke_worker_commands_dropped_total",
		Help: "Commands dropped because a worker queue was full.",
	}, []string{"worker"})

	// SequencerReconnects counts reconnection attempts to the sequencer backend.
	SequencerReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juke_sequencer_reconnects_total",
		Help: "Reconnection attempts to the sequencer backend.",
	})

	// VideosPlayed counts video items started.
	VideosPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juke_videos_played_total",
		Help: "Video items started.",
	})

	// AnnouncementsPlayed counts announcements started.
	AnnouncementsPlayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "juke_announcements_total",
		Help: "Announcements played.",
	})

	// DatabaseQueryDuration observes gorm operation latency by operation and table.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "juke_db_query_duration_seconds",
		Help:    "Database query duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts gorm operation errors.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "juke_db_errors_total",
		Help: "Database errors.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open database connections.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "juke_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
