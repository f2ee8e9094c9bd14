package adapter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_client_calls_total",
		Help: "Logical reserve calls made to product-service, by classified outcome.",
	}, []string{"outcome"})

	reservationAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_client_attempts_total",
		Help: "Individual reserve attempts (including retries), by result.",
	}, []string{"result"})
)
