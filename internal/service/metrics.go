package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	listingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goodfinds_listing_transitions_total",
		Help: "Lifecycle operations by operation and outcome",
	}, []string{"op", "outcome"})

	listingOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goodfinds_listing_op_duration_seconds",
		Help:    "Time to apply a lifecycle operation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"op"})

	reviewsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "goodfinds_reviews_recorded_total",
		Help: "Reviews folded into a poster's reputation",
	})
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, new(*GuardError)):
		return "guard"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
