// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AvailabilityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_availability_checks_total",
		Help: "Domain availability lookups by outcome (available, taken, error, rejected).",
	}, []string{"outcome"})

	AvailabilityCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "namewhisk_availability_cache_total",
		Help: "Availability cache lookups by result (hit, miss).",
	}, []string{"result"})

	CandidatesGenerated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "namewhisk_candidates_generated",
		Help:    "Number of candidate names produced per request.",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"mode"})
)

// IncAvailabilityCheck records the outcome of one upstream availability lookup.
func IncAvailabilityCheck(outcome string) {
	AvailabilityChecksTotal.WithLabelValues(outcome).Inc()
}

// IncAvailabilityCache records a cache hit or miss.
func IncAvailabilityCache(hit bool) {
	if hit {
		AvailabilityCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	AvailabilityCacheTotal.WithLabelValues("miss").Inc()
}

// ObserveCandidates records how many candidates a request produced.
func ObserveCandidates(mode string, n int) {
	CandidatesGenerated.WithLabelValues(mode).Observe(float64(n))
}
