package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "galia",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Orders accepted by the intake endpoint.",
	}, []string{"persisted"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "galia",
		Subsystem: "orders",
		Name:      "status_transitions_total",
		Help:      "Admin status transition requests by outcome.",
	}, []string{"to", "outcome"})

	InventoryAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "galia",
		Subsystem: "inventory",
		Name:      "adjustments_total",
		Help:      "Inventory adjustment attempts by outcome.",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "galia",
		Subsystem: "intake",
		Name:      "rate_limited_total",
		Help:      "Intake requests rejected by the rate limiter.",
	})
)
