package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		NotificationTotal,
		NotificationDuration,
		StateTransitions,
		BusinessMismatches,
		QueryDRTotal,
	)
}

var (
	// Count of processed inbound notifications by result and bounded reason.
	// result: ok|rejected
	// reason (rejected only): unknown_tx|bad_signature|malformed|storage|locked
	NotificationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepay_notifications_total",
			Help: "Inbound payment notifications by result and rejection reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of notification handling grouped by result.
	NotificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onepay_notification_duration_seconds",
			Help:    "Duration of inbound notification handling in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Committed transaction state transitions. Guarded no-op re-deliveries
	// are not counted here.
	StateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepay_state_transitions_total",
			Help: "Committed transaction state transitions by source and target state.",
		},
		[]string{"from", "to"},
	)

	// Business invariant mismatches found on otherwise-verified notifications.
	BusinessMismatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepay_business_mismatches_total",
			Help: "Field-level mismatches between verified notifications and stored transactions.",
		},
		[]string{"field"},
	)

	// queryDR calls by outcome: success|fail|error.
	QueryDRTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onepay_querydr_total",
			Help: "queryDR status calls by outcome.",
		},
		[]string{"outcome"},
	)
)
