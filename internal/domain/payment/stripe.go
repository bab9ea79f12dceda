// internal/domain/payment/stripe.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// stripeSignatureTolerance bounds how old a signed timestamp may be
const stripeSignatureTolerance = 5 * time.Minute

// VerifyStripeSignature checks the Stripe-Signature header against the
// raw body. An empty secret disables verification for development
// environments.
func VerifyStripeSignature(body []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	if header == "" {
		return ErrInvalidSignature
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := time.Since(time.Unix(ts, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

type stripeObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	PaymentIntent    string            `json:"payment_intent"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ParseStripeEvent decodes a Stripe webhook body into a canonical
// event. Event types outside the payment lifecycle yield
// ErrUnknownEvent.
func ParseStripeEvent(body []byte) (*Event, error) {
	var raw stripeEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var kind EventKind
	switch raw.Type {
	case "payment_intent.succeeded":
		kind = EventPaymentSucceeded
	case "payment_intent.payment_failed":
		kind = EventPaymentFailed
	case "charge.refunded":
		kind = EventRefund
	default:
		return nil, ErrUnknownEvent
	}

	orderIDStr, ok := raw.Data.Object.Metadata["order_id"]
	if !ok {
		return nil, fmt.Errorf("%w: missing order_id metadata", ErrMissingRef)
	}
	orderID, err := strconv.ParseUint(orderIDStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad order_id metadata", ErrMissingRef)
	}

	gatewayRef := raw.Data.Object.ID
	if raw.Data.Object.PaymentIntent != "" {
		gatewayRef = raw.Data.Object.PaymentIntent
	}

	reason := ""
	if raw.Data.Object.LastPaymentError != nil {
		reason = raw.Data.Object.LastPaymentError.Message
	}

	return &Event{
		Gateway:    "stripe",
		Kind:       kind,
		EventID:    raw.ID,
		OrderID:    uint(orderID),
		GatewayRef: gatewayRef,
		Amount:     raw.Data.Object.Amount,
		Reason:     reason,
	}, nil
}
