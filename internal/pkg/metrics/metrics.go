// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts orders created by checkout, labeled by payment method.
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Number of orders created through checkout",
	}, []string{"payment_method"})

	// CheckoutFailures counts aborted checkouts by failure kind.
	CheckoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_failures_total",
		Help: "Number of checkout attempts that were rolled back",
	}, []string{"reason"})

	// WebhookEvents counts gateway webhook deliveries by gateway and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Number of payment webhook events processed",
	}, []string{"gateway", "outcome"})

	// CouponRedemptions counts successful coupon redemptions.
	CouponRedemptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_coupon_redemptions_total",
		Help: "Number of coupons redeemed at checkout",
	})

	// NotificationsSent counts notification deliveries by status.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notifications_total",
		Help: "Number of notification delivery attempts",
	}, []string{"status"})

	// RequestDuration observes HTTP request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
