package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const StripeProviderName = "stripe"

type StripeProvider struct {
	client        *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)

	return &StripeProvider{
		client:        sc,
		webhookSecret: webhookSecret,
	}
}

func (s *StripeProvider) Name() string {
	return StripeProviderName
}

func (s *StripeProvider) SignatureHeader() string {
	return "Stripe-Signature"
}

func (s *StripeProvider) CreateOrder(ctx context.Context, request *OrderRequest) (*OrderResponse, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(toMinorUnits(request.Amount)), // Convert to cents
		Currency:    stripe.String(request.Currency),
		Description: stripe.String(request.Description),
	}
	params.Context = ctx

	for key, value := range request.Metadata {
		params.AddMetadata(key, value)
	}

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &OrderResponse{
		OrderID:      pi.ID,
		Status:       string(pi.Status),
		Amount:       fromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
		ClientSecret: pi.ClientSecret,
		CreatedAt:    pi.Created,
	}, nil
}

func (s *StripeProvider) ValidateWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if signature == "" || s.webhookSecret == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookEvent{
		Provider:  StripeProviderName,
		EventID:   event.ID,
		EventType: string(event.Type),
		Status:    stripeStatus(string(event.Type)),
		CreatedAt: event.Created,
	}
	if result.EventID == "" {
		result.EventID = payloadDigest(payload)
	}

	switch result.Status {
	case EventIgnored:
		return result, nil

	case EventRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		result.PaymentID = charge.ID
		if charge.PaymentIntent != nil && charge.PaymentIntent.ID != "" {
			result.PaymentID = charge.PaymentIntent.ID
		}
		result.Amount = fromMinorUnits(charge.Amount)
		result.RefundAmount = fromMinorUnits(charge.AmountRefunded)
		result.Currency = string(charge.Currency)
		result.Metadata = copyMetadata(charge.Metadata)
		if charge.AmountRefunded > 0 && charge.AmountRefunded < charge.Amount {
			result.Status = EventPartialRefund
		}
		if charge.AmountRefunded <= 0 {
			result.RefundAmount = result.Amount
		}

	default:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		result.PaymentID = pi.ID
		result.Amount = fromMinorUnits(pi.Amount)
		result.Currency = string(pi.Currency)
		result.Metadata = copyMetadata(pi.Metadata)
	}

	return result, nil
}

func stripeStatus(eventType string) string {
	switch eventType {
	case "payment_intent.succeeded":
		return EventCaptured
	case "payment_intent.amount_capturable_updated":
		return EventAuthorized
	case "payment_intent.payment_failed":
		// The intent returns to requires_payment_method and can still succeed.
		return EventAttemptFailed
	case "payment_intent.canceled":
		return EventCancelled
	case "charge.refunded":
		return EventRefunded
	}
	return EventIgnored
}

func copyMetadata(metadata map[string]string) map[string]string {
	result := make(map[string]string, len(metadata))
	for key, value := range metadata {
		result[key] = value
	}
	return result
}
