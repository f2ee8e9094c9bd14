package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderAcceptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_accept_total",
		Help: "Accept calls by the resulting order state.",
	}, []string{"state"})

	reconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_reconcile_total",
		Help: "Pending reservations processed by the reconcile worker, by result.",
	}, []string{"result"})
)
