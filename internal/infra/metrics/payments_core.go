package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		providerCallsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment ledger inserts by provider and result (recorded/duplicate).",
		},
		[]string{"provider", "result"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total value of recorded payments in the smallest currency unit, labeled by currency.",
		},
		[]string{"currency"},
	)

	// op: create_plan|create_customer|checkout|update_subscription|cancel_subscription
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_provider_calls_total",
			Help: "Outbound payment provider API calls by operation and status.",
		},
		[]string{"provider", "op", "status"},
	)
)

func IncPayment(provider, result string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(result)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncProviderCall(provider, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerCallsTotal.WithLabelValues(norm(provider), norm(op), status).Inc()
}
