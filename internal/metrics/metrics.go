package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "djobea_llm_requests_total",
			Help: "LLM completion attempts by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	LLMLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "djobea_llm_latency_seconds",
			Help: "LLM completion latency in seconds",
		},
		[]string{"provider"},
	)

	LLMExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "djobea_llm_exhausted_total",
			Help: "Requests for which every provider failed",
		},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "djobea_notifications_enqueued_total",
			Help: "Notifications accepted into the queue by kind",
		},
		[]string{"kind"},
	)

	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "djobea_notifications_delivered_total",
			Help: "Notifications confirmed delivered",
		},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "djobea_notifications_failed_total",
			Help: "Notifications that exhausted their delivery attempts",
		},
	)

	NotificationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "djobea_notifications_expired_total",
			Help: "Notifications dropped after exceeding their TTL",
		},
	)

	DeliveryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "djobea_delivery_latency_seconds",
			Help: "Transport send latency in seconds",
		},
	)

	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "djobea_queue_pending",
			Help: "Notifications currently pending delivery",
		},
	)

	ProactiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "djobea_proactive_jobs",
			Help: "Proactive update jobs currently running",
		},
	)
)
