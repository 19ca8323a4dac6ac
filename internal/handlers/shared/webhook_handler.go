package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/payment"
)

// Razorpay sends a stable id per event in this header; retries reuse it.
const razorpayEventIDHeader = "X-Razorpay-Event-Id"

type WebhookHandler struct {
	webhookService services.WebhookService
	logger         *logger.Logger
}

func NewWebhookHandler(webhookService services.WebhookService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         log.WithField("handler", "webhook"),
	}
}

// Handle returns the endpoint for one gateway. The raw body is read before
// anything else so the signature is checked over the exact bytes received.
func (h *WebhookHandler) Handle(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, ok := h.webhookService.SignatureHeader(provider)
		if !ok {
			utils.NotFoundResponse(c, "Payment provider")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, utils.MaxWebhookBodySize+1))
		if err != nil {
			utils.BadRequestResponse(c, "Failed to read request body")
			return
		}
		if len(payload) > utils.MaxWebhookBodySize {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Webhook payload too large")
			return
		}

		signature := c.GetHeader(header)
		if signature == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "INVALID_SIGNATURE", "Missing signature header")
			return
		}

		var eventID string
		if provider == payment.RazorpayProviderName {
			eventID = c.GetHeader(razorpayEventIDHeader)
		}
		result, err := h.webhookService.HandleWebhook(c.Request.Context(), provider, payload, signature, eventID)
		if err != nil {
			if errors.Is(err, services.ErrAmountMismatch) && result != nil {
				h.logger.WithPaymentID(result.PaymentID).WithError(err).Warn("Webhook failed amount audit")
			}
			respondError(c, h.logger, err)
			return
		}

		utils.SuccessResponse(c, "Webhook "+string(result.Outcome), result)
	}
}
