package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/internal/validators"
	"goride-wallet/pkg/logger"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	// authenticity
	{services.ErrInvalidSignature, http.StatusUnauthorized, "INVALID_SIGNATURE"},

	// integration
	{services.ErrUnknownProvider, http.StatusNotFound, "UNKNOWN_PROVIDER"},
	{services.ErrTypeNotSpecified, http.StatusBadRequest, "TYPE_NOT_SPECIFIED"},
	{services.ErrMalformedPayload, http.StatusBadRequest, "MALFORMED_PAYLOAD"},
	{services.ErrInvalidMetadata, http.StatusUnprocessableEntity, "INVALID_METADATA"},
	{services.ErrKindMismatch, http.StatusUnprocessableEntity, "KIND_MISMATCH"},

	// audit
	{services.ErrAmountMismatch, http.StatusConflict, "AMOUNT_MISMATCH"},

	// not found
	{services.ErrWalletNotFound, http.StatusNotFound, "WALLET_NOT_FOUND"},
	{services.ErrTransactionNotFound, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
	{services.ErrWithdrawalNotFound, http.StatusNotFound, "WITHDRAWAL_NOT_FOUND"},
	{services.ErrDriverNotFound, http.StatusNotFound, "DRIVER_NOT_FOUND"},
	{services.ErrPlanNotFound, http.StatusNotFound, "PLAN_NOT_FOUND"},

	// domain validation
	{services.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{services.ErrBelowMinimumDeposit, http.StatusBadRequest, "BELOW_MINIMUM_DEPOSIT"},
	{services.ErrBelowMinimumWithdrawal, http.StatusBadRequest, "BELOW_MINIMUM_WITHDRAWAL"},
	{services.ErrInsufficientBalance, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
	{services.ErrInvalidPayoutDetails, http.StatusBadRequest, "INVALID_PAYOUT_DETAILS"},
	{services.ErrInvalidOwner, http.StatusBadRequest, "INVALID_OWNER"},
	{services.ErrPlanInactive, http.StatusBadRequest, "PLAN_INACTIVE"},
	{services.ErrDuplicatePayment, http.StatusConflict, "DUPLICATE_PAYMENT"},
	{services.ErrRequestAlreadyProcessed, http.StatusConflict, "REQUEST_ALREADY_PROCESSED"},
	{services.ErrAlreadyTerminal, http.StatusConflict, "ALREADY_SETTLED"},
	{services.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},

	// transient
	{services.ErrConcurrentUpdate, http.StatusServiceUnavailable, "CONCURRENT_UPDATE"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "TIMEOUT"},
}

func statusForError(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func respondError(c *gin.Context, log *logger.Logger, err error) {
	status, code := statusForError(err)
	if status == http.StatusInternalServerError {
		log.WithContext(c.Request.Context()).WithError(err).Error("Unhandled request error")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.ErrorResponse(c, status, code, err.Error())
}

func respondValidation(c *gin.Context, errs validators.ValidationErrors) {
	details := make(map[string]string, len(errs))
	for _, e := range errs {
		details[e.Field] = e.Message
	}
	utils.ValidationErrorResponse(c, details)
}
