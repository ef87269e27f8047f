package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSettled  = "settled"
	outcomeReplayed = "replayed"
)

var (
	confirmationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmations_total",
			Help: "Processed payment confirmations by outcome",
		},
		[]string{"outcome"},
	)

	// Orders stuck paid-but-unsettled are not self-healing through
	// gateway retries alone, so they get a dedicated alertable counter.
	unsettledAnomalies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_unsettled_orders_total",
			Help: "Orders marked paid whose settlement write failed",
		},
	)
)
