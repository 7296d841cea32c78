package services

import (
	"time"

	"github.com/amirphl/Kaminari/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: utils.MetricsNamespace,
			Subsystem: "push",
			Name:      "deliveries_total",
			Help:      "Web push delivery attempts by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	pushDeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: utils.MetricsNamespace,
			Subsystem: "push",
			Name:      "delivery_duration_seconds",
			Help:      "Latency of web push delivery attempts in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)

func observeDelivery(mode string, outcome DeliveryOutcome, elapsed time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	pushDeliveriesTotal.WithLabelValues(mode, outcome.String()).Inc()
	pushDeliveryDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
