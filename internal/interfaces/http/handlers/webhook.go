// internal/interfaces/http/handlers/webhook.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

// WebhookHandler receives payment gateway callbacks
type WebhookHandler struct {
	payments *payment.Service
	paypal   *payment.PayPalVerifier
	config   *config.Config
	logger   *logrus.Entry
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(payments *payment.Service, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		paypal:   payment.NewPayPalVerifier(cfg),
		config:   cfg,
		logger:   logrus.WithField("component", "webhooks"),
	}
}

// Stripe handles Stripe webhook deliveries
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if err := payment.VerifyStripeSignature(body, sig, h.config.Gateways.StripeWebhookSecret); err != nil {
		h.logger.WithError(err).Warn("Rejected stripe webhook signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	ev, err := payment.ParseStripeEvent(body)
	if err != nil {
		h.renderParseError(c, "stripe", err)
		return
	}

	h.apply(c, ev)
}

// PayPal handles PayPal webhook deliveries
func (h *WebhookHandler) PayPal(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	headers := payment.HeadersFromRequest(c.Request)
	if err := h.paypal.Verify(c.Request.Context(), body, headers); err != nil {
		h.logger.WithError(err).Warn("Rejected paypal webhook signature")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	ev, err := payment.ParsePayPalEvent(body)
	if err != nil {
		h.renderParseError(c, "paypal", err)
		return
	}

	h.apply(c, ev)
}

func (h *WebhookHandler) renderParseError(c *gin.Context, gateway string, err error) {
	if errors.Is(err, payment.ErrUnknownEvent) {
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}
	if errors.Is(err, payment.ErrMissingRef) {
		h.logger.WithError(err).WithField("gateway", gateway).Warn("Webhook event without order reference")
		c.JSON(http.StatusOK, gin.H{"message": "Event acknowledged"})
		return
	}
	h.logger.WithError(err).WithField("gateway", gateway).Warn("Malformed webhook payload")
	c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed event payload"})
}

// apply runs the reconciliation pipeline. Events that reference an
// unknown order are logged and acknowledged, never retried.
func (h *WebhookHandler) apply(c *gin.Context, ev *payment.Event) {
	if err := h.payments.Apply(ev); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.logger.WithFields(logrus.Fields{
				"gateway":  ev.Gateway,
				"event_id": ev.EventID,
			}).Warn("Webhook event for unknown order")
			c.JSON(http.StatusOK, gin.H{"message": "Event acknowledged"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Event processed"})
}
