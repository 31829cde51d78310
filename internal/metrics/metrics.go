package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pbgw_deliveries_total",
			Help: "Delivery attempts by terminal outcome of the attempt",
		},
		[]string{"outcome"}, // sent|failed|retrying|abandoned
	)

	AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pbgw_attempt_duration_seconds",
			Help:    "Outbound postback call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

var registerOnce sync.Once

// MustRegister registers the collectors exactly once per process; later
// calls are no-ops so serve and worker setup paths can both call it.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			DeliveriesTotal,
			AttemptDuration,
		)
	})
}
