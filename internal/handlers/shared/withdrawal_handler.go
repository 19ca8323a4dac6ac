package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/middleware"
	"goride-wallet/internal/models"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/internal/validators"
	"goride-wallet/pkg/logger"
)

type WithdrawalHandler struct {
	withdrawalService services.WithdrawalService
	logger            *logger.Logger
}

func NewWithdrawalHandler(withdrawalService services.WithdrawalService, log *logger.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawalService: withdrawalService,
		logger:            log.WithField("handler", "withdrawal"),
	}
}

// Submit reserves funds and creates a pending withdrawal request
func (h *WithdrawalHandler) Submit(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.WithdrawalRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateWithdrawal(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	details := models.PayoutDetails{UPIID: request.UPIID}
	if request.BankAccount != nil {
		details.BankAccount = &models.BankAccount{
			AccountNumber: request.BankAccount.AccountNumber,
			IFSCCode:      strings.ToUpper(request.BankAccount.IFSCCode),
			AccountName:   request.BankAccount.AccountName,
			BankName:      request.BankAccount.BankName,
		}
	}

	withdrawal, err := h.withdrawalService.Submit(c.Request.Context(), owner, &services.WithdrawalSubmission{
		Amount:        request.Amount,
		PaymentMethod: models.PayoutMethod(request.PaymentMethod),
		PayoutDetails: details,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Withdrawal request submitted successfully", withdrawal)
}

// ListMine returns the caller's withdrawal requests
func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	requests, total, err := h.withdrawalService.ListByOwner(c.Request.Context(), owner, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Withdrawal requests retrieved successfully", requests, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// ListByStatus is the admin review queue
func (h *WithdrawalHandler) ListByStatus(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	status := models.WithdrawalStatus(strings.ToLower(c.Query("status")))

	requests, total, err := h.withdrawalService.ListByStatus(c.Request.Context(), status, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Withdrawal requests retrieved successfully", requests, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// Approve settles the reservation as paid out
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	requestID, adminID, ok := h.decisionParams(c)
	if !ok {
		return
	}

	var request validators.WithdrawalDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			utils.BadRequestResponse(c, "Invalid request: "+err.Error())
			return
		}
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	withdrawal, err := h.withdrawalService.Approve(c.Request.Context(), requestID, adminID, validators.SanitizeInput(request.AdminNotes))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Withdrawal approved successfully", withdrawal)
}

// Reject releases the reservation back to the wallet
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	requestID, adminID, ok := h.decisionParams(c)
	if !ok {
		return
	}

	var request validators.WithdrawalRejectRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateReject(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	withdrawal, err := h.withdrawalService.Reject(c.Request.Context(), requestID, adminID, request.AdminNotes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Withdrawal rejected successfully", withdrawal)
}

func (h *WithdrawalHandler) decisionParams(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	requestID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid withdrawal request ID")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	adminID, ok := middleware.CurrentUserID(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, primitive.NilObjectID, false
	}

	return requestID, adminID, true
}
