package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/razorpay/razorpay-go"
)

const RazorpayProviderName = "razorpay"

type RazorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayProvider(keyID, keySecret, webhookSecret string) *RazorpayProvider {
	client := razorpay.NewClient(keyID, keySecret)

	return &RazorpayProvider{
		client:        client,
		webhookSecret: webhookSecret,
	}
}

func (r *RazorpayProvider) Name() string {
	return RazorpayProviderName
}

func (r *RazorpayProvider) SignatureHeader() string {
	return "X-Razorpay-Signature"
}

func (r *RazorpayProvider) CreateOrder(ctx context.Context, request *OrderRequest) (*OrderResponse, error) {
	notes := make(map[string]interface{}, len(request.Metadata))
	for k, v := range request.Metadata {
		notes[k] = v
	}

	orderData := map[string]interface{}{
		"amount":   toMinorUnits(request.Amount), // Amount in paise
		"currency": request.Currency,
		"receipt":  request.Receipt,
		"notes":    notes,
	}

	order, err := r.client.Order.Create(orderData, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderID, _ := order["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("failed to create order: response has no id")
	}
	status, _ := order["status"].(string)
	currency, _ := order["currency"].(string)

	// The payment itself is authorized on the client; the webhook confirms it.
	return &OrderResponse{
		OrderID:   orderID,
		Status:    status,
		Amount:    fromMinorUnits(numberToInt64(order["amount"])),
		Currency:  currency,
		CreatedAt: numberToInt64(order["created_at"]),
	}, nil
}

func (r *RazorpayProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if signature == "" || r.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	expectedSignature := r.generateSignature(payload)
	if !hmac.Equal([]byte(signature), []byte(expectedSignature)) {
		return nil, ErrInvalidSignature
	}

	var envelope razorpayEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	event := &WebhookEvent{
		Provider:  RazorpayProviderName,
		EventID:   payloadDigest(payload),
		EventType: envelope.Event,
		Status:    razorpayStatus(envelope.Event),
		CreatedAt: envelope.CreatedAt,
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = time.Now().Unix()
	}
	if event.Status == EventIgnored {
		return event, nil
	}

	payment := envelope.Payload.Payment
	if payment == nil {
		if envelope.Payload.Order == nil {
			return nil, fmt.Errorf("%w: %s carries no payment entity", ErrMalformedPayload, envelope.Event)
		}
		order := envelope.Payload.Order.Entity
		event.PaymentID = order.ID
		event.Amount = fromMinorUnits(order.Amount)
		event.Currency = order.Currency
		event.Metadata = order.Notes
		return event, nil
	}

	entity := payment.Entity
	event.PaymentID = entity.OrderID
	if event.PaymentID == "" {
		event.PaymentID = entity.ID
	}
	event.Amount = fromMinorUnits(entity.Amount)
	event.Currency = entity.Currency
	event.Metadata = entity.Notes

	// The order stays payable after a declined attempt; only a payment without
	// an order is finished by its failure.
	if event.Status == EventFailed && entity.OrderID != "" {
		event.Status = EventAttemptFailed
	}

	if event.Status == EventRefunded {
		refunded := entity.AmountRefunded
		if refund := envelope.Payload.Refund; refund != nil && refund.Entity.Amount > 0 {
			refunded = refund.Entity.Amount
		}
		if refunded <= 0 {
			refunded = entity.Amount
		}
		event.RefundAmount = fromMinorUnits(refunded)
		if refunded < entity.Amount {
			event.Status = EventPartialRefund
		}
	}

	return event, nil
}

func (r *RazorpayProvider) generateSignature(payload []byte) string {
	h := hmac.New(sha256.New, []byte(r.webhookSecret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func razorpayStatus(event string) string {
	switch event {
	case "payment.captured":
		return EventCaptured
	case "order.paid":
		return EventPaid
	case "payment.authorized":
		return EventAuthorized
	case "payment.failed":
		return EventFailed
	case "refund.processed", "payment.refunded":
		return EventRefunded
	}
	return EventIgnored
}

type razorpayEnvelope struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity razorpayOrder `json:"entity"`
		} `json:"order"`
		Refund *struct {
			Entity razorpayRefund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID             string        `json:"id"`
	OrderID        string        `json:"order_id"`
	Amount         int64         `json:"amount"`
	AmountRefunded int64         `json:"amount_refunded"`
	Currency       string        `json:"currency"`
	Status         string        `json:"status"`
	Notes          razorpayNotes `json:"notes"`
}

type razorpayOrder struct {
	ID       string        `json:"id"`
	Amount   int64         `json:"amount"`
	Currency string        `json:"currency"`
	Notes    razorpayNotes `json:"notes"`
}

type razorpayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// razorpayNotes accepts both the object form and the empty array Razorpay sends
// when no notes were attached.
type razorpayNotes map[string]string

func (n *razorpayNotes) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '[' || bytes.Equal(trimmed, []byte("null")) {
		*n = razorpayNotes{}
		return nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return err
	}
	*n = stringifyMetadata(values)
	return nil
}

func numberToInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}
