package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Total number of checkout sessions created",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkout creations",
	}, []string{"reason"})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received, by event type",
	}, []string{"type"})

	WebhookSignatureFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for a bad signature",
	})

	PurchasesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_recorded_total",
		Help: "Total number of purchase rows materialized",
	})

	DuplicatePurchasesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_purchases_skipped_total",
		Help: "Total number of purchase inserts skipped by the idempotency guard",
	})

	PurchasesSkippedNoPriceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_skipped_no_price_total",
		Help: "Total number of products skipped because no price could be resolved",
	})

	PaymentsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_succeeded_total",
		Help: "Total number of payments reconciled as succeeded",
	})

	PaymentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of payments reconciled as failed or canceled",
	})

	CatalogUpsertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_upserts_total",
		Help: "Total number of catalog upserts, by result",
	}, []string{"result"})

	CatalogResyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_resync_latency_seconds",
		Help:    "Latency of bulk catalog resync operations",
		Buckets: prometheus.DefBuckets,
	})

	WebhookProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_latency_seconds",
		Help:    "Latency of webhook event processing",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
