package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Subsystem: "http",
			Name:      "orders_created_total",
			Help:      "Total number of orders created over the API",
		},
	)

	paymentIntentsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Subsystem: "http",
			Name:      "payment_intents_created_total",
			Help:      "Total number of card payments started, by provider",
		},
		[]string{"provider"},
	)
)

var (
	webhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Subsystem: "webhook",
			Name:      "events_received_total",
			Help:      "Total number of webhook deliveries received, by provider",
		},
		[]string{"provider"},
	)

	webhooksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Subsystem: "webhook",
			Name:      "events_rejected_total",
			Help:      "Total number of webhook deliveries rejected for a bad signature",
		},
		[]string{"provider"},
	)

	webhooksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payment_service",
			Subsystem: "webhook",
			Name:      "events_failed_total",
			Help:      "Total number of webhook deliveries that failed processing",
		},
		[]string{"provider"},
	)

	webhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "payment_service",
			Subsystem: "webhook",
			Name:      "event_duration_seconds",
			Help:      "Histogram of webhook processing durations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(
		ordersCreated,
		paymentIntentsCreated,

		webhooksReceived,
		webhooksRejected,
		webhooksFailed,
		webhookDuration,
	)
}
