package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookRejectedTotal,
		webhookDuration,
	)
}

var (
	// outcome: applied|ignored|unmatched|duplicate|error
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Verified provider webhook deliveries by event type and outcome.",
		},
		[]string{"provider", "event", "outcome"},
	)

	// reason: missing_signature|not_configured|bad_signature|bad_payload|read_error
	webhookRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_rejected_total",
			Help: "Webhook deliveries rejected before dispatch.",
		},
		[]string{"provider", "reason"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_duration_seconds",
			Help:    "Webhook handler latency in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"provider"},
	)
)

func IncWebhookEvent(provider, event, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(event), norm(outcome)).Inc()
}

func IncWebhookRejected(provider, reason string) {
	webhookRejectedTotal.WithLabelValues(norm(provider), norm(reason)).Inc()
}

func ObserveWebhook(provider string, d time.Duration) {
	webhookDuration.WithLabelValues(norm(provider)).Observe(d.Seconds())
}
