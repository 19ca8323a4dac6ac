package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/payment"
)

const signatureHeader = "X-Razorpay-Signature"

type stubWebhookService struct {
	result *services.WebhookResult
	err    error

	calls     int
	payload   []byte
	signature string
	eventID   string
}

func (s *stubWebhookService) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string, eventID string) (*services.WebhookResult, error) {
	s.calls++
	s.payload = payload
	s.signature = signature
	s.eventID = eventID
	return s.result, s.err
}

func (s *stubWebhookService) Reconcile(ctx context.Context, event *payment.WebhookEvent) (*services.WebhookResult, error) {
	return s.result, s.err
}

func (s *stubWebhookService) SignatureHeader(provider string) (string, bool) {
	switch provider {
	case payment.RazorpayProviderName:
		return signatureHeader, true
	case payment.StripeProviderName:
		return "Stripe-Signature", true
	}
	return "", false
}

func newWebhookRouter(svc services.WebhookService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewWebhookHandler(svc, logger.NewDiscardLogger())
	router.POST("/webhooks/:provider", func(c *gin.Context) {
		handler.Handle(c.Param("provider"))(c)
	})
	return router
}

func postWebhook(router *gin.Engine, provider string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, utils.APIResponse) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var response utils.APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)
	return rec, response
}

func TestWebhookHandlerProcessed(t *testing.T) {
	svc := &stubWebhookService{result: &services.WebhookResult{
		Provider:  payment.RazorpayProviderName,
		PaymentID: "order_1",
		Outcome:   services.OutcomeProcessed,
	}}
	router := newWebhookRouter(svc)
	body := []byte(`{"event":"payment.captured"}`)

	rec, response := postWebhook(router, "razorpay", body, map[string]string{
		signatureHeader:       "sig",
		"X-Razorpay-Event-Id": "evt_1",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, utils.StatusSuccess, response.Status)
	assert.Equal(t, "Webhook processed", response.Message)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, body, svc.payload, "the exact bytes reach signature verification")
	assert.Equal(t, "sig", svc.signature)
	assert.Equal(t, "evt_1", svc.eventID)
}

func TestWebhookHandlerEventIDHeaderIsRazorpayOnly(t *testing.T) {
	svc := &stubWebhookService{result: &services.WebhookResult{
		Provider: payment.StripeProviderName,
		Outcome:  services.OutcomeProcessed,
	}}
	router := newWebhookRouter(svc)

	rec, _ := postWebhook(router, "stripe", []byte(`{"id":"evt_stripe"}`), map[string]string{
		"Stripe-Signature":    "t=1,v1=abc",
		"X-Razorpay-Event-Id": "evt_spoofed",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "t=1,v1=abc", svc.signature)
	assert.Empty(t, svc.eventID, "stripe event ids come from the signed payload")
}

func TestWebhookHandlerRejections(t *testing.T) {
	signed := map[string]string{signatureHeader: "sig"}

	cases := []struct {
		name     string
		provider string
		body     []byte
		headers  map[string]string
		err      error
		status   int
		code     string
	}{
		{"missing signature", "razorpay", []byte(`{}`), nil, nil, http.StatusUnauthorized, "INVALID_SIGNATURE"},
		{"bad signature", "razorpay", []byte(`{}`), signed, services.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE"},
		{"unknown provider", "paypal", []byte(`{}`), signed, nil, http.StatusNotFound, "NOT_FOUND"},
		{"oversize", "razorpay", bytes.Repeat([]byte("a"), utils.MaxWebhookBodySize+1), signed, nil, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"amount mismatch", "razorpay", []byte(`{}`), signed, fmt.Errorf("%w: expected 500.00, got 1.00", services.ErrAmountMismatch), http.StatusConflict, "AMOUNT_MISMATCH"},
		{"missing kind", "razorpay", []byte(`{}`), signed, services.ErrTypeNotSpecified, http.StatusBadRequest, "TYPE_NOT_SPECIFIED"},
		{"contention", "razorpay", []byte(`{}`), signed, services.ErrConcurrentUpdate, http.StatusServiceUnavailable, "CONCURRENT_UPDATE"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubWebhookService{
				result: &services.WebhookResult{PaymentID: "order_1", Outcome: services.OutcomeAuditFailed},
				err:    tc.err,
			}
			rec, response := postWebhook(newWebhookRouter(svc), tc.provider, tc.body, tc.headers)

			assert.Equal(t, tc.status, rec.Code)
			require.NotNil(t, response.Error)
			assert.Equal(t, tc.code, response.Error.Code)
			if tc.err == nil {
				assert.Zero(t, svc.calls, "rejected before reconciliation")
			}
		})
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrUnknownProvider, http.StatusNotFound},
		{services.ErrInvalidMetadata, http.StatusUnprocessableEntity},
		{services.ErrKindMismatch, http.StatusUnprocessableEntity},
		{fmt.Errorf("submit: %w", services.ErrInsufficientBalance), http.StatusBadRequest},
		{services.ErrRequestAlreadyProcessed, http.StatusConflict},
		{services.ErrWithdrawalNotFound, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := statusForError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}
