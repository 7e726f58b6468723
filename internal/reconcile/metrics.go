package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "projectwatch"

var (
	cyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "cycles_total",
			Help:      "Total reconciliation cycles run",
		},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full reconciliation cycle",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	subscriptionsChecked = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "subscriptions_checked_total",
			Help:      "Subscriptions visited across all cycles",
		},
	)

	fetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "fetch_failures_total",
			Help:      "Upstream fetches that failed and skipped a subscription",
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "notifications_total",
			Help:      "Notification dispatches by outcome",
		},
		[]string{"status"},
	)
)

func recordCycle(duration time.Duration, stats CycleStats) {
	cyclesTotal.Inc()
	cycleDuration.Observe(duration.Seconds())
	subscriptionsChecked.Add(float64(stats.Subscriptions))
}

func recordFetchFailure() {
	fetchFailures.Inc()
}

func recordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}
