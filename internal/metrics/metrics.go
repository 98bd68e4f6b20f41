// Package metrics holds the Prometheus collectors for the payment lifecycle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stkPushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpinghand_stk_push_total",
			Help: "STK push attempts by result",
		},
		[]string{"result", "simulated"},
	)

	statusQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpinghand_status_query_total",
			Help: "STK status queries by classified outcome",
		},
		[]string{"outcome", "kind"},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpinghand_reconcile_total",
			Help: "Provider notifications by source and reconciliation outcome",
		},
		[]string{"source", "outcome"},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpinghand_reconcile_duration_seconds",
			Help:    "Time spent reconciling provider notifications",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"source"},
	)

	rateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpinghand_rate_limit_exceeded_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// ObserveSTKPush records a push attempt. result is "accepted" or the
// failure reason.
func ObserveSTKPush(result string, simulated bool) {
	sim := "false"
	if simulated {
		sim = "true"
	}
	stkPushTotal.WithLabelValues(result, sim).Inc()
}

func ObserveStatusQuery(outcome, kind string) {
	statusQueryTotal.WithLabelValues(outcome, kind).Inc()
}

// ObserveReconcile records one callback or timeout notification.
func ObserveReconcile(source, outcome string, started time.Time) {
	reconcileTotal.WithLabelValues(source, outcome).Inc()
	reconcileDuration.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

func ObserveRateLimited(route string) {
	rateLimitExceeded.WithLabelValues(route).Inc()
}
