package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_attempts_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"event_id", "outcome"},
	)

	reservationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_transitions_total",
			Help: "Reservation state transitions",
		},
		[]string{"to"},
	)

	stateConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_state_conflicts_total",
			Help: "Transitions rejected because the reservation changed concurrently",
		},
		[]string{"operation"},
	)

	claimDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_claim_duration_seconds",
			Help:    "Duration of the inventory claim transaction",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"event_id"},
	)

	expiredHolds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_expired_holds_total",
			Help: "Holds released by the reaper",
		},
	)

	availabilityCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_cache_requests_total",
			Help: "Availability cache lookups by result",
		},
		[]string{"result"},
	)
)

func TrackReservationAttempt(eventID, outcome string) {
	reservationAttempts.WithLabelValues(eventID, outcome).Inc()
}

func TrackTransition(to string) {
	reservationTransitions.WithLabelValues(to).Inc()
}

func TrackStateConflict(operation string) {
	stateConflicts.WithLabelValues(operation).Inc()
}

func TrackClaim(eventID string, duration time.Duration) {
	claimDuration.WithLabelValues(eventID).Observe(duration.Seconds())
}

func TrackExpiredHolds(n int) {
	expiredHolds.Add(float64(n))
}

func TrackAvailabilityCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	availabilityCache.WithLabelValues(result).Inc()
}
