package handlers

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/middleware"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/internal/validators"
	"goride-wallet/pkg/logger"
)

type PlanHandler struct {
	planService services.PlanService
	logger      *logger.Logger
}

func NewPlanHandler(planService services.PlanService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		logger:      log.WithField("handler", "plan"),
	}
}

// ListPlans returns the plans a driver can buy
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Plans retrieved successfully", plans)
}

// CurrentPlan returns the driver's plan and purchase history
func (h *PlanHandler) CurrentPlan(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	driver, err := h.planService.GetDriver(c.Request.Context(), owner.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Plan retrieved successfully", gin.H{
		"profile_status": driver.ProfileStatus,
		"current_plan":   driver.CurrentPlan,
		"plan_purchases": driver.PlanPurchases,
	})
}

// Purchase records a pending plan purchase; the gateway webhook activates it
func (h *PlanHandler) Purchase(c *gin.Context) {
	owner, ok := middleware.CurrentOwner(c)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	var request validators.PlanPurchaseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}
	planID, _ := primitive.ObjectIDFromHex(request.PlanID)

	result, err := h.planService.SubmitPurchase(c.Request.Context(), &services.PlanPurchaseRequest{
		DriverID:         owner.ID,
		PlanID:           planID,
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
	utils.CreatedResponse(c, "Plan purchase submitted successfully", result)
}
