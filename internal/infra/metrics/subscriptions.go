package metrics

import (
	"workspace-billing/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		trialsExpiredTotal,
		subscriptionsTotal,
		limitChecksTotal,
	)
}

var (
	// source: read|sweep
	trialsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trials_expired_total",
			Help: "Trialing subscriptions transitioned to expired.",
		},
		[]string{"source"},
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"},
	)

	limitChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limit_checks_total",
			Help: "Limit gate decisions by resource.",
		},
		[]string{"resource", "result"}, // result: allowed|denied
	)
)

func IncTrialsExpired(source string, count int) {
	trialsExpiredTotal.WithLabelValues(norm(source)).Add(float64(count))
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	for _, status := range model.SubscriptionStatuses() {
		subscriptionsTotal.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

func IncLimitCheck(resource string, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	limitChecksTotal.WithLabelValues(norm(resource), result).Inc()
}
