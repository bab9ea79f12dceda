// internal/domain/payment/paypal.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/your-org/storefront-backend/internal/config"
)

// PayPalHeaders carries the transmission headers PayPal signs each
// webhook delivery with.
type PayPalHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}

// HeadersFromRequest extracts the PayPal transmission headers
func HeadersFromRequest(r *http.Request) PayPalHeaders {
	return PayPalHeaders{
		TransmissionID:   r.Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: r.Header.Get("Paypal-Transmission-Time"),
		TransmissionSig:  r.Header.Get("Paypal-Transmission-Sig"),
		CertURL:          r.Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         r.Header.Get("Paypal-Auth-Algo"),
	}
}

// PayPalVerifier validates webhook deliveries against PayPal's
// verify-webhook-signature endpoint. An empty webhook ID disables
// verification for development environments.
type PayPalVerifier struct {
	config *config.Config
	client *http.Client
}

// NewPayPalVerifier creates a verifier with a bounded HTTP client
func NewPayPalVerifier(cfg *config.Config) *PayPalVerifier {
	return &PayPalVerifier{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify calls PayPal's verification API for the delivery
func (v *PayPalVerifier) Verify(ctx context.Context, body []byte, headers PayPalHeaders) error {
	if v.config.Gateways.PayPalWebhookID == "" {
		return nil
	}

	payload := map[string]interface{}{
		"transmission_id":   headers.TransmissionID,
		"transmission_time": headers.TransmissionTime,
		"transmission_sig":  headers.TransmissionSig,
		"cert_url":          headers.CertURL,
		"auth_algo":         headers.AuthAlgo,
		"webhook_id":        v.config.Gateways.PayPalWebhookID,
		"webhook_event":     json.RawMessage(body),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.config.Gateways.PayPalVerifyURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach verification endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrInvalidSignature
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode verification response: %w", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return ErrInvalidSignature
	}
	return nil
}

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID           string `json:"id"`
		InvoiceID    string `json:"invoice_id"`
		StatusDetail *struct {
			Reason string `json:"reason"`
		} `json:"status_details"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
	} `json:"resource"`
}

// ParsePayPalEvent decodes a PayPal webhook body into a canonical
// event. The invoice ID carries the order number.
func ParsePayPalEvent(body []byte) (*Event, error) {
	var raw paypalEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var kind EventKind
	switch raw.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		kind = EventPaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		kind = EventPaymentFailed
	case "PAYMENT.CAPTURE.REFUNDED":
		kind = EventRefund
	default:
		return nil, ErrUnknownEvent
	}

	if raw.Resource.InvoiceID == "" {
		return nil, fmt.Errorf("%w: missing invoice_id", ErrMissingRef)
	}

	var amount int64
	if raw.Resource.Amount.Value != "" {
		value, err := strconv.ParseFloat(raw.Resource.Amount.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount", ErrMalformedEvent)
		}
		amount = int64(math.Round(value * 100))
	}

	reason := ""
	if raw.Resource.StatusDetail != nil {
		reason = raw.Resource.StatusDetail.Reason
	}

	return &Event{
		Gateway:     "paypal",
		Kind:        kind,
		EventID:     raw.ID,
		OrderNumber: raw.Resource.InvoiceID,
		GatewayRef:  raw.Resource.ID,
		Amount:      amount,
		Reason:      reason,
	}, nil
}
