package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservations_total",
		Help: "Reserve calls handled by the reservation engine, by result.",
	}, []string{"result"})

	itemsReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "item_instances_reserved_total",
		Help: "Item instances flipped from AVAILABLE to RESERVED.",
	})

	itemsReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "item_instances_released_total",
		Help: "Item instances flipped from RESERVED back to AVAILABLE.",
	})
)
