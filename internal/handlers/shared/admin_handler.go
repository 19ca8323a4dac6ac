package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/models"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/internal/validators"
	"goride-wallet/pkg/logger"
)

type AdminHandler struct {
	walletService services.WalletService
	logger        *logger.Logger
}

func NewAdminHandler(walletService services.WalletService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		walletService: walletService,
		logger:        log.WithField("handler", "admin"),
	}
}

type CancellationChargeRequest struct {
	Amount    float64 `json:"amount" validate:"required,amount"`
	Reference string  `json:"reference" validate:"required,min=4,max=128"`
	Reason    string  `json:"reason" validate:"omitempty,max=255"`
}

// Ledger is the owner-joined view over every wallet's transactions
func (h *AdminHandler) Ledger(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := &models.LedgerFilter{
		OwnerKind: models.OwnerKind(strings.ToLower(c.Query("owner_kind"))),
		Status:    models.TransactionStatus(strings.ToLower(c.Query("status"))),
		Kind:      models.TransactionKind(strings.ToLower(c.Query("kind"))),
	}
	if raw := c.Query("owner_id"); raw != "" {
		ownerID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid owner ID")
			return
		}
		filter.OwnerID = &ownerID
	}

	entries, total, err := h.walletService.GetLedger(c.Request.Context(), filter, params)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Ledger retrieved successfully", entries, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// FindTransaction looks a gateway payment up across every wallet
func (h *AdminHandler) FindTransaction(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Param("paymentId"))
	if paymentID == "" {
		utils.BadRequestResponse(c, "Payment ID is required")
		return
	}

	lookup, err := h.walletService.FindTransaction(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Transaction retrieved successfully", lookup)
}

// VerifyWallet recomputes a wallet's counters from its history
func (h *AdminHandler) VerifyWallet(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	result, err := h.walletService.VerifyWallet(c.Request.Context(), owner)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Wallet verified", result)
}

// ChargeCancellation moves a cancellation fee into the platform ledger
func (h *AdminHandler) ChargeCancellation(c *gin.Context) {
	owner, ok := ownerFromPath(c)
	if !ok {
		return
	}

	var request CancellationChargeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	charge, err := h.walletService.ChargeCancellation(c.Request.Context(), owner, &services.CancellationChargeRequest{
		Amount:    request.Amount,
		Reference: request.Reference,
		Reason:    validators.SanitizeInput(request.Reason),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Cancellation charge applied", charge)
}

// ownerFromPath reads /:kind/:id; the platform wallet is addressed as
// /platform/-.
func ownerFromPath(c *gin.Context) (models.Owner, bool) {
	kind := models.OwnerKind(strings.ToLower(c.Param("kind")))
	if kind == models.OwnerKindPlatform {
		return models.PlatformOwner(), true
	}
	if kind != models.OwnerKindDriver && kind != models.OwnerKindRider {
		utils.BadRequestResponse(c, "Invalid owner kind")
		return models.Owner{}, false
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid owner ID")
		return models.Owner{}, false
	}
	return models.Owner{Kind: kind, ID: id}, true
}
