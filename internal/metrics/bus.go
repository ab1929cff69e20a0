// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_bus_dropped_total",
		Help: "Total number of in-memory bus message drops by topic kind and reason",
	}, []string{"topic", "reason"})

	BusPublishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_bus_publish_failures_total",
		Help: "Total number of failed publishes by transport, topic kind and qos",
	}, []string{"transport", "topic", "qos"})

	TransportEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_transport_events_total",
		Help: "Transport connection events observed during sessions (error, offline, online)",
	}, []string{"transport", "kind"})
)

// IncBusDropReason records a dropped bus message with a concrete reason.
func IncBusDropReason(topic, reason string) {
	if topic == "" {
		topic = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	BusDroppedTotal.WithLabelValues(topic, reason).Inc()
}

// IncPublishFailure records a publish that did not complete.
func IncPublishFailure(transport, topic, qos string) {
	BusPublishFailuresTotal.WithLabelValues(transport, topic, qos).Inc()
}

// IncTransportEvent records a connection-level event.
func IncTransportEvent(transport, kind string) {
	TransportEventsTotal.WithLabelValues(transport, kind).Inc()
}
