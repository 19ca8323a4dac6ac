package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"goride-wallet/internal/middleware"
	"goride-wallet/internal/models"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/internal/validators"
	"goride-wallet/pkg/logger"
)

type WalletHandler struct {
	walletService services.WalletService
	logger        *logger.Logger
}

func NewWalletHandler(walletService services.WalletService, log *logger.Logger) *WalletHandler {
	return &WalletHandler{
		walletService: walletService,
		logger:        log.WithField("handler", "wallet"),
	}
}

type SpendRequest struct {
	Amount      float64 `json:"amount" validate:"required,amount"`
	Reference   string  `json:"reference" validate:"required,min=4,max=128"`
	Description string  `json:"description" validate:"omitempty,max=255"`
}

// GetWallet returns the caller's wallet, creating it on first access
func (h *WalletHandler) GetWallet(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	wallet, err := h.walletService.GetWallet(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Wallet retrieved successfully", wallet)
}

// ListTransactions returns the caller's transactions, newest first
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	status := models.TransactionStatus(strings.ToLower(c.Query("status")))
	transactions, err := h.walletService.ListTransactions(c.Request.Context(), owner, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Transactions retrieved successfully", transactions, &utils.Meta{
		Count: len(transactions),
	})
}

// InitiateDeposit records a pending deposit for a payment the client started
func (h *WalletHandler) InitiateDeposit(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.DepositRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	result, err := h.walletService.InitiateDeposit(c.Request.Context(), owner, &services.DepositRequest{
		Amount:           request.Amount,
		GatewayPaymentID: request.GatewayPaymentID,
		Provider:         request.Provider,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if result.AlreadyProcessed {
		utils.SuccessResponse(c, "Payment already processed", result)
		return
	}
	utils.CreatedResponse(c, "Deposit initiated successfully", result)
}

// CreateDepositOrder creates a gateway order and the pending deposit for it
func (h *WalletHandler) CreateDepositOrder(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.DepositOrderRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	order, err := h.walletService.CreateDepositOrder(c.Request.Context(), owner, &services.DepositOrderRequest{
		Amount:   request.Amount,
		Provider: request.Provider,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Deposit order created successfully", order)
}

// Pay debits the rider's wallet for a ride
func (h *WalletHandler) Pay(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request SpendRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	txn, err := h.walletService.Spend(c.Request.Context(), owner, &services.SpendRequest{
		Amount:      request.Amount,
		Reference:   request.Reference,
		Description: validators.SanitizeInput(request.Description),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Payment completed successfully", txn)
}
