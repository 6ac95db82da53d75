// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
)

// Status constants for dispatch metrics.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusNotFound = "not_found"
)

// Dispatched counts routed messages by side, command, and status.
// Use RegisterMetrics to register this with a Prometheus registry.
var Dispatched = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "driftsea_messages_dispatched_total",
		Help: "Total number of dispatched application messages",
	},
	[]string{"side", "command", "status"},
)

// Duration is the histogram for handler execution time.
// Use RegisterMetrics to register this with a Prometheus registry.
var Duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "driftsea_message_handler_duration_seconds",
		Help:    "Message handler execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"side", "command"},
)

// RegisterMetrics registers router package metrics with the given
// Prometheus registry. Panics if registration fails (following prometheus
// convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Dispatched)
	reg.MustRegister(Duration)
}

// panicError wraps a recovered handler panic.
func panicError(command string, recovered any) error {
	return oops.Code("ROUTER_HANDLER_PANIC").
		With("command", command).
		Errorf("handler panicked: %v", recovered)
}
