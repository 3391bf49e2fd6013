package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, notificationsTotal, httpRequestsTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Background job runs, labeled by job and status.",
		},
		[]string{"job", "status"}, // status: ok|error|skipped
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by kind and status.",
		},
		[]string{"kind", "status"}, // status: sent|error|dropped
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method and status code class.",
		},
		[]string{"method", "code"},
	)
)

func IncJob(job, status string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func IncHTTPRequest(method, code string) {
	httpRequestsTotal.WithLabelValues(method, code).Inc()
}
