package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Service call metrics
	serviceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rendezvous_service_request_duration_seconds",
			Help:    "Date-service request duration in seconds by endpoint",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"endpoint", "status"},
	)

	// Session lifecycle metrics
	sessionAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendezvous_session_advances_total",
			Help: "Stage advances by action kind and outcome",
		},
		[]string{"action", "outcome"}, // action: "choose"/"free_input", outcome: "playing"/"checkpoint"/"finale"/"error"
	)

	sessionExtends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendezvous_session_extends_total",
			Help: "Extension purchase attempts by result",
		},
		[]string{"result"}, // "success"/"insufficient_balance"/"error"/"already_extended"
	)

	eligibilityBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendezvous_eligibility_blocks_total",
			Help: "Eligibility refusals by reason",
		},
		[]string{"reason"},
	)

	duplicateSubmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rendezvous_duplicate_submissions_total",
			Help: "Submissions dropped by the pending-action guard",
		},
	)

	sessionsResumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rendezvous_sessions_resumed_total",
			Help: "Sessions rebuilt from a server snapshot",
		},
	)
)

// ObserveServiceRequest records one date-service round trip.
func ObserveServiceRequest(endpoint, status string, seconds float64) {
	serviceRequestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}

// RecordAdvance counts a stage advance attempt by its resulting phase.
func RecordAdvance(action, outcome string) {
	sessionAdvances.WithLabelValues(action, outcome).Inc()
}

// RecordExtend counts an extension purchase attempt.
func RecordExtend(result string) {
	sessionExtends.WithLabelValues(result).Inc()
}

// RecordEligibilityBlock counts a refused start by reason.
func RecordEligibilityBlock(reason string) {
	eligibilityBlocks.WithLabelValues(reason).Inc()
}

// RecordDuplicateSubmission counts a locally dropped double submission.
func RecordDuplicateSubmission() {
	duplicateSubmissions.Inc()
}

// RecordResume counts a session rebuilt from a snapshot.
func RecordResume() {
	sessionsResumed.Inc()
}
