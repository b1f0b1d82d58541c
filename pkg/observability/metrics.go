// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and tracing for the ClauseSense
// client.
//
// # Description
//
// ClientMetrics tracks the requests the client issues against the analysis
// backend:
//   - Request counters (by channel and outcome)
//   - Latency histograms (by channel)
//   - In-flight gauges (by channel)
//   - Session lifecycle counters (archived, restored, stopped)
//
// Metrics are registered on a caller-supplied registry so tests and
// embedders never collide on the global one. The CLI serves them on
// --metrics-addr.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "clausesense"

const clientSubsystem = "client"

// Outcome labels a finished request.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
)

// ClientMetrics holds all Prometheus metrics for backend requests.
//
// A nil *ClientMetrics is valid and records nothing, so components can take
// it as an optional dependency.
type ClientMetrics struct {
	RequestsTotal *prometheus.CounterVec

	RequestDurationSeconds *prometheus.HistogramVec

	InFlightRequests *prometheus.GaugeVec

	SessionEventsTotal *prometheus.CounterVec
}

// NewClientMetrics creates and registers the client metrics on reg.
//
// # Inputs
//
//   - reg: Registry to register on. nil uses prometheus.DefaultRegisterer.
//
// # Limitations
//
//   - Registering twice on the same registry panics (promauto semantics).
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ClientMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "requests_total",
				Help:      "Total backend requests by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "request_duration_seconds",
				Help:      "Backend request duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"channel"},
		),

		InFlightRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "in_flight_requests",
				Help:      "Backend requests currently outstanding",
			},
			[]string{"channel"},
		),

		SessionEventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "session",
				Name:      "events_total",
				Help:      "Session lifecycle events (archived, restored, stopped)",
			},
			[]string{"event"},
		),
	}
}

// =============================================================================
// Recording Helpers
// =============================================================================

// RequestStarted increments the in-flight gauge for channel.
func (m *ClientMetrics) RequestStarted(channel string) {
	if m == nil {
		return
	}
	m.InFlightRequests.WithLabelValues(channel).Inc()
}

// RequestFinished records the outcome and duration of a request and
// decrements the in-flight gauge.
func (m *ClientMetrics) RequestFinished(channel string, outcome Outcome, seconds float64) {
	if m == nil {
		return
	}
	m.InFlightRequests.WithLabelValues(channel).Dec()
	m.RequestsTotal.WithLabelValues(channel, string(outcome)).Inc()
	m.RequestDurationSeconds.WithLabelValues(channel).Observe(seconds)
}

// SessionEvent counts a session lifecycle event.
func (m *ClientMetrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEventsTotal.WithLabelValues(event).Inc()
}
