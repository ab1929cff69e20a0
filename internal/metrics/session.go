// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Golden Signal: Lifecycle
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namewhisk_sessions_started_total",
		Help: "Total number of sessions that reached the CONNECTED state.",
	})

	SessionsEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_sessions_ended_total",
		Help: "Total number of terminated sessions by end reason.",
	}, []string{"reason"})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "namewhisk_sessions_active",
		Help: "Number of sessions currently dispatching.",
	})

	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "namewhisk_session_duration_seconds",
		Help:    "Wall time from connect to transport close.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	})

	SessionConnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namewhisk_session_connect_failures_total",
		Help: "Sessions that could not be started because the transport was unavailable.",
	})

	// Golden Signal: Requests
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_requests_total",
		Help: "Requests handled by result (ok, error) and mode.",
	}, []string{"result", "mode"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "namewhisk_request_duration_seconds",
		Help:    "Time from dequeue to response publish.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"mode"})

	RequestsIgnoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "namewhisk_requests_ignored_total",
		Help: "Request messages dropped because the session was already ending.",
	})
)

// RecordSessionStart marks a session as connected and active.
func RecordSessionStart() {
	SessionsStartedTotal.Inc()
	SessionsActive.Inc()
}

// RecordSessionEnd finalizes a session that was previously started.
func RecordSessionEnd(reason string, d time.Duration) {
	if reason == "" {
		reason = "unknown"
	}
	SessionsEndedTotal.WithLabelValues(reason).Inc()
	SessionsActive.Dec()
	SessionDuration.Observe(d.Seconds())
}

// RecordRequest records the outcome of one handled request.
func RecordRequest(mode string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	RequestsTotal.WithLabelValues(result, mode).Inc()
	RequestDuration.WithLabelValues(mode).Observe(d.Seconds())
}
