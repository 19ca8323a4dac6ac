package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Normalized callback statuses shared by every provider.
const (
	EventCaptured      = "captured"
	EventPaid          = "paid"
	EventAuthorized    = "authorized"
	EventFailed        = "failed"
	// EventAttemptFailed is one declined attempt on an order or intent that
	// the customer may still pay with another method.
	EventAttemptFailed = "attempt_failed"
	EventVoided        = "voided"
	EventCancelled     = "cancelled"
	EventRefunded      = "refunded"
	EventPartialRefund = "partial_refund"
	EventIgnored       = "ignored"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

type PaymentProvider interface {
	Name() string
	SignatureHeader() string
	CreateOrder(ctx context.Context, request *OrderRequest) (*OrderResponse, error)
	// ValidateWebhook authenticates the raw payload before decoding anything.
	ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

type OrderRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Receipt     string            `json:"receipt"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type OrderResponse struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	ClientSecret string  `json:"client_secret,omitempty"`
	CreatedAt    int64   `json:"created_at"`
}

type WebhookEvent struct {
	Provider  string `json:"provider"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	// Status is one of the Event* constants.
	Status string `json:"status"`
	// PaymentID is the correlation key the client initiated the payment with.
	PaymentID    string            `json:"payment_id"`
	Amount       float64           `json:"amount"`
	RefundAmount float64           `json:"refund_amount,omitempty"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
	CreatedAt    int64             `json:"created_at"`
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromMinorUnits(amount int64) float64 {
	return float64(amount) / 100
}

func payloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func stringifyMetadata(values map[string]interface{}) map[string]string {
	result := make(map[string]string, len(values))
	for k, v := range values {
		switch value := v.(type) {
		case string:
			result[k] = value
		case float64:
			result[k] = strconv.FormatFloat(value, 'f', -1, 64)
		case nil:
		default:
			result[k] = fmt.Sprintf("%v", value)
		}
	}
	return result
}
