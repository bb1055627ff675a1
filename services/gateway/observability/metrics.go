// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the chat gateway.
//
// Metrics cover the request surface (REST and WebSocket), reply latency by
// provider, live WebSocket connections, and model switch outcomes. All
// operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	chatSubsystem    = "chat"
)

// ChatMetrics holds all Prometheus metrics for the gateway.
//
// Initialize once at startup via InitMetrics().
type ChatMetrics struct {
	// RequestsTotal counts chat turns by surface and status.
	// Labels: endpoint (rest, websocket), status (success, error)
	RequestsTotal *prometheus.CounterVec

	// ReplyLatencySeconds measures end-to-end turn latency.
	// Labels: provider (ollama, huggingface, mock)
	ReplyLatencySeconds *prometheus.HistogramVec

	// ActiveWebsockets tracks currently connected WebSocket clients.
	ActiveWebsockets prometheus.Gauge

	// ModelSwitchesTotal counts switch attempts by outcome.
	// Labels: status (success, failure)
	ModelSwitchesTotal *prometheus.CounterVec
}

// DefaultMetrics is the instance used by the handlers; set by InitMetrics.
var DefaultMetrics *ChatMetrics

// InitMetrics creates and registers all gateway metrics. Call once at
// startup before serving.
func InitMetrics() *ChatMetrics {
	m := &ChatMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "requests_total",
				Help:      "Chat turns processed, by surface and status.",
			},
			[]string{"endpoint", "status"},
		),
		ReplyLatencySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "reply_latency_seconds",
				Help:      "End-to-end chat turn latency by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"provider"},
		),
		ActiveWebsockets: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "active_websockets",
				Help:      "Currently connected WebSocket clients.",
			},
		),
		ModelSwitchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: chatSubsystem,
				Name:      "model_switches_total",
				Help:      "Model switch attempts by outcome.",
			},
			[]string{"status"},
		),
	}
	DefaultMetrics = m
	return m
}
