package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by route template and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myautowhiz_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myautowhiz_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// WebhookEvents counts payment webhook deliveries by event type and outcome.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myautowhiz_webhook_events_total",
			Help: "Total number of payment webhook events received",
		},
		[]string{"event_type", "outcome"},
	)

	WebhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myautowhiz_webhook_processing_seconds",
			Help:    "Time spent applying a webhook event",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// UpstreamRequests counts calls to third-party vehicle data services.
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myautowhiz_upstream_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"service", "outcome"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myautowhiz_upstream_request_duration_seconds",
			Help:    "Upstream API latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myautowhiz_cache_lookups_total",
			Help: "Cache lookups by namespace and result",
		},
		[]string{"namespace", "result"},
	)

	AnalysesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "myautowhiz_analyses_created_total",
			Help: "Total number of analyses created",
		},
	)

	QuotaDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "myautowhiz_quota_denials_total",
			Help: "Analysis requests rejected for exceeding the monthly limit",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myautowhiz_notifications_created_total",
			Help: "Notifications created by type",
		},
		[]string{"type"},
	)
)
