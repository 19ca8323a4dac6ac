package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRazorpaySecret = "whsec_razorpay_test"

func signRazorpay(payload []byte) string {
	h := hmac.New(sha256.New, []byte(testRazorpaySecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func newTestRazorpay() *RazorpayProvider {
	return NewRazorpayProvider("rzp_test_key", "rzp_test_secret", testRazorpaySecret)
}

func TestRazorpayValidateWebhookCaptured(t *testing.T) {
	payload := []byte(`{
		"event": "payment.captured",
		"created_at": 1700000000,
		"payload": {"payment": {"entity": {
			"id": "pay_1", "order_id": "order_1", "amount": 50000, "currency": "INR", "status": "captured",
			"notes": {"transaction_kind": "deposit", "owner_kind": "rider", "owner_id": "64b7f0c2a1b2c3d4e5f60718", "attempt": 2}
		}}}
	}`)

	event, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	require.NoError(t, err)

	assert.Equal(t, RazorpayProviderName, event.Provider)
	assert.Equal(t, EventCaptured, event.Status)
	assert.Equal(t, "order_1", event.PaymentID, "the order id is the correlation key")
	assert.Equal(t, 500.0, event.Amount)
	assert.Equal(t, "INR", event.Currency)
	assert.Equal(t, "deposit", event.Metadata["transaction_kind"])
	assert.Equal(t, "2", event.Metadata["attempt"])
	assert.Equal(t, int64(1700000000), event.CreatedAt)
	assert.Len(t, event.EventID, 64)
}

func TestRazorpayValidateWebhookRejectsBadSignatures(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","amount":50000}}}}`)
	signature := signRazorpay(payload)
	provider := newTestRazorpay()

	tampered := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","amount":90000}}}}`)
	_, err := provider.ValidateWebhook(context.Background(), tampered, signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = provider.ValidateWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	unconfigured := NewRazorpayProvider("key", "secret", "")
	_, err = unconfigured.ValidateWebhook(context.Background(), payload, signature)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRazorpayValidateWebhookMalformed(t *testing.T) {
	payload := []byte(`{"event": "payment.captured", "payload": `)
	_, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	payload = []byte(`{"event": "payment.captured", "payload": {}}`)
	_, err = newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestRazorpayValidateWebhookEmptyNotesArray(t *testing.T) {
	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_2","amount":1000,"notes":[]}}}}`)

	event, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	require.NoError(t, err)
	assert.Equal(t, EventFailed, event.Status)
	assert.Equal(t, "pay_2", event.PaymentID)
	assert.Empty(t, event.Metadata)
}

func TestRazorpayFailedAttemptOnOrderIsNotFinal(t *testing.T) {
	payload := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_attempt1","order_id":"order_multi","amount":20000,"notes":{}}}}}`)

	event, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	require.NoError(t, err)
	assert.Equal(t, EventAttemptFailed, event.Status)
	assert.Equal(t, "order_multi", event.PaymentID)
}

func TestRazorpayValidateWebhookOrderPaid(t *testing.T) {
	payload := []byte(`{"event":"order.paid","payload":{"order":{"entity":{"id":"order_9","amount":99900,"currency":"INR","notes":{"type":"plan_purchase"}}}}}`)

	event, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	require.NoError(t, err)
	assert.Equal(t, EventPaid, event.Status)
	assert.Equal(t, "order_9", event.PaymentID)
	assert.Equal(t, 999.0, event.Amount)
	assert.Equal(t, "plan_purchase", event.Metadata["type"])
}

func TestRazorpayValidateWebhookRefunds(t *testing.T) {
	partial := []byte(`{"event":"refund.processed","payload":{
		"payment":{"entity":{"id":"pay_3","order_id":"order_3","amount":50000,"amount_refunded":20000}},
		"refund":{"entity":{"id":"rfnd_1","payment_id":"pay_3","amount":20000}}}}`)
	event, err := newTestRazorpay().ValidateWebhook(context.Background(), partial, signRazorpay(partial))
	require.NoError(t, err)
	assert.Equal(t, EventPartialRefund, event.Status)
	assert.Equal(t, 500.0, event.Amount)
	assert.Equal(t, 200.0, event.RefundAmount)

	full := []byte(`{"event":"payment.refunded","payload":{"payment":{"entity":{"id":"pay_4","amount":50000,"amount_refunded":50000}}}}`)
	event, err = newTestRazorpay().ValidateWebhook(context.Background(), full, signRazorpay(full))
	require.NoError(t, err)
	assert.Equal(t, EventRefunded, event.Status)
	assert.Equal(t, 500.0, event.RefundAmount)
}

func TestRazorpayIgnoredEvents(t *testing.T) {
	payload := []byte(`{"event":"payment.dispute.created","payload":{}}`)

	event, err := newTestRazorpay().ValidateWebhook(context.Background(), payload, signRazorpay(payload))
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, event.Status)
	assert.Empty(t, event.PaymentID)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(50000), toMinorUnits(500))
	assert.Equal(t, int64(1999), toMinorUnits(19.99))
	assert.Equal(t, 19.99, fromMinorUnits(1999))
}
