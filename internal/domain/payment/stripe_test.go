package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signStripe(t *testing.T, body []byte, secret string, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyStripeSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"

	t.Run("valid signature", func(t *testing.T) {
		header := signStripe(t, body, secret, time.Now())
		assert.NoError(t, VerifyStripeSignature(body, header, secret))
	})

	t.Run("wrong secret", func(t *testing.T) {
		header := signStripe(t, body, "whsec_other", time.Now())
		assert.ErrorIs(t, VerifyStripeSignature(body, header, secret), ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		header := signStripe(t, body, secret, time.Now())
		assert.ErrorIs(t, VerifyStripeSignature([]byte(`{"id":"evt_2"}`), header, secret), ErrInvalidSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := signStripe(t, body, secret, time.Now().Add(-time.Hour))
		assert.ErrorIs(t, VerifyStripeSignature(body, header, secret), ErrInvalidSignature)
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, VerifyStripeSignature(body, "", secret), ErrInvalidSignature)
	})

	t.Run("unconfigured secret skips verification", func(t *testing.T) {
		assert.NoError(t, VerifyStripeSignature(body, "", ""))
	})
}

func TestParseStripeEvent(t *testing.T) {
	t.Run("payment succeeded", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_1",
			"type": "payment_intent.succeeded",
			"data": {"object": {"id": "pi_42", "amount": 6030, "metadata": {"order_id": "17"}}}
		}`)
		ev, err := ParseStripeEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentSucceeded, ev.Kind)
		assert.Equal(t, uint(17), ev.OrderID)
		assert.Equal(t, "pi_42", ev.GatewayRef)
		assert.Equal(t, int64(6030), ev.Amount)
	})

	t.Run("payment failed carries reason", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_2",
			"type": "payment_intent.payment_failed",
			"data": {"object": {"id": "pi_43", "metadata": {"order_id": "18"},
				"last_payment_error": {"message": "card_declined"}}}
		}`)
		ev, err := ParseStripeEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, ev.Kind)
		assert.Equal(t, "card_declined", ev.Reason)
	})

	t.Run("charge refunded uses payment intent ref", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_3",
			"type": "charge.refunded",
			"data": {"object": {"id": "ch_9", "payment_intent": "pi_44", "metadata": {"order_id": "19"}}}
		}`)
		ev, err := ParseStripeEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventRefund, ev.Kind)
		assert.Equal(t, "pi_44", ev.GatewayRef)
	})

	t.Run("ignored event type", func(t *testing.T) {
		_, err := ParseStripeEvent([]byte(`{"id": "evt_4", "type": "customer.created"}`))
		assert.ErrorIs(t, err, ErrUnknownEvent)
	})

	t.Run("missing order metadata", func(t *testing.T) {
		_, err := ParseStripeEvent([]byte(`{"id": "evt_5", "type": "payment_intent.succeeded", "data": {"object": {"id": "pi_1"}}}`))
		assert.ErrorIs(t, err, ErrMissingRef)
	})

	t.Run("undecodable body", func(t *testing.T) {
		_, err := ParseStripeEvent([]byte(`{"id": "evt_6"`))
		assert.ErrorIs(t, err, ErrMalformedEvent)
	})
}

func TestParsePayPalEvent(t *testing.T) {
	t.Run("capture completed", func(t *testing.T) {
		body := []byte(`{
			"id": "WH-1",
			"event_type": "PAYMENT.CAPTURE.COMPLETED",
			"resource": {"id": "cap_7", "invoice_id": "ORD-20260831-00042",
				"amount": {"value": "60.30", "currency_code": "USD"}}
		}`)
		ev, err := ParsePayPalEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentSucceeded, ev.Kind)
		assert.Equal(t, "ORD-20260831-00042", ev.OrderNumber)
		assert.Equal(t, "cap_7", ev.GatewayRef)
		assert.Equal(t, int64(6030), ev.Amount)
	})

	t.Run("capture denied", func(t *testing.T) {
		body := []byte(`{
			"id": "WH-2",
			"event_type": "PAYMENT.CAPTURE.DENIED",
			"resource": {"id": "cap_8", "invoice_id": "ORD-20260831-00043"}
		}`)
		ev, err := ParsePayPalEvent(body)
		require.NoError(t, err)
		assert.Equal(t, EventPaymentFailed, ev.Kind)
	})

	t.Run("missing invoice", func(t *testing.T) {
		body := []byte(`{"id": "WH-3", "event_type": "PAYMENT.CAPTURE.COMPLETED", "resource": {"id": "cap_9"}}`)
		_, err := ParsePayPalEvent(body)
		assert.ErrorIs(t, err, ErrMissingRef)
	})
}
