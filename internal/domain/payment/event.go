// internal/domain/payment/event.go
package payment

import "errors"

// EventKind is the canonical classification of a gateway webhook event
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventRefund           EventKind = "refund"
)

var (
	// ErrInvalidSignature is returned when webhook verification fails
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnknownEvent is returned for event types the pipeline ignores
	ErrUnknownEvent = errors.New("unhandled webhook event type")
	// ErrMalformedEvent is returned when a payload cannot be decoded
	ErrMalformedEvent = errors.New("malformed webhook payload")
	// ErrMissingRef is returned when a decodable event carries no
	// usable order reference
	ErrMissingRef = errors.New("event does not reference an order")
)

// Event is a gateway-agnostic payment event. Exactly one of OrderID and
// OrderNumber identifies the order: Stripe events carry the numeric ID
// in metadata, PayPal events carry the order number as the invoice.
type Event struct {
	Gateway     string
	Kind        EventKind
	EventID     string
	OrderID     uint
	OrderNumber string
	GatewayRef  string
	Amount      int64 // cents; zero when the gateway omits it
	Reason      string
}
