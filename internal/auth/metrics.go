// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for authentication metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeBypass   = "bypass"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
)

// ChallengesIssued counts issued authentication challenges.
// Use RegisterMetrics to register this with a Prometheus registry.
var ChallengesIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "driftsea_auth_challenges_total",
		Help: "Total number of authentication challenges issued",
	},
)

// Results counts finished authentication attempts by provider and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Results = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "driftsea_auth_results_total",
		Help: "Total number of finished authentication attempts",
	},
	[]string{"provider", "outcome"},
)

// PendingAuthentications gauges the number of outstanding challenges.
// Use RegisterMetrics to register this with a Prometheus registry.
var PendingAuthentications = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "driftsea_auth_pending",
		Help: "Number of connections with an outstanding authentication challenge",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus
// registry. Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(ChallengesIssued)
	reg.MustRegister(Results)
	reg.MustRegister(PendingAuthentications)
}
