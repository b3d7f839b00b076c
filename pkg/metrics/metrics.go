package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// PermitDecisions counts permit assignment policy evaluations and their outcome (allow|deny).
	PermitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_permit_decisions_total",
			Help: "Total number of permit assignment policy decisions",
		},
		[]string{"result"},
	)

	// CheckoutBlocks counts inventory checkouts rejected for missing permits.
	CheckoutBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_checkout_blocks_total",
			Help: "Number of checkouts blocked by unsatisfied permit requirements",
		},
	)

	// ScanEvents counts scanner reads by source (badge|rfid).
	ScanEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_scan_events_total",
			Help: "Total number of scanner events processed",
		},
		[]string{"source"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
