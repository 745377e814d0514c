package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AggregationsComputed counts summary folds by direction.
	AggregationsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fintrack_aggregations_total",
		Help: "Number of aggregate summaries computed.",
	}, []string{"direction"})

	// ReportsDispatched counts report dispatch outcomes: sent, skipped
	// (zero total), failed.
	ReportsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fintrack_reports_dispatched_total",
		Help: "Number of report dispatch attempts by outcome.",
	}, []string{"outcome"})

	// EmailsDelivered counts delivery worker outcomes.
	EmailsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fintrack_emails_delivered_total",
		Help: "Number of email deliveries by outcome.",
	}, []string{"outcome"})

	// HTTPRequestDuration observes request latency per route and status.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fintrack_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
