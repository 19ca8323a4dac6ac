package routes

import (
	"github.com/gin-gonic/gin"

	handlers "goride-wallet/internal/handlers/shared"
	"goride-wallet/internal/middleware"
)

type Handlers struct {
	Wallet     *handlers.WalletHandler
	Withdrawal *handlers.WithdrawalHandler
	Plan       *handlers.PlanHandler
	Webhook    *handlers.WebhookHandler
	Admin      *handlers.AdminHandler
}

// SetupWebhookRoutes sets up the gateway callbacks. They authenticate by
// signature, not by token.
func SetupWebhookRoutes(r *gin.RouterGroup, h *Handlers) {
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/razorpay", h.Webhook.Handle("razorpay"))
		webhooks.POST("/stripe", h.Webhook.Handle("stripe"))
	}
}

// SetupWalletRoutes sets up routes for driver and rider wallets
func SetupWalletRoutes(r *gin.RouterGroup, h *Handlers, jwtSecret string) {
	wallet := r.Group("/wallet")
	wallet.Use(middleware.AuthRequired(jwtSecret), middleware.WalletOwnerRequired())
	{
		wallet.GET("", h.Wallet.GetWallet)
		wallet.GET("/transactions", h.Wallet.ListTransactions)

		// Deposits
		wallet.POST("/deposits", h.Wallet.InitiateDeposit)
		wallet.POST("/deposits/order", h.Wallet.CreateDepositOrder)

		// Withdrawals
		wallet.POST("/withdrawals", h.Withdrawal.Submit)
		wallet.GET("/withdrawals", h.Withdrawal.ListMine)
	}

	rider := r.Group("/rider/wallet")
	rider.Use(middleware.AuthRequired(jwtSecret), middleware.RiderRequired())
	{
		rider.POST("/pay", h.Wallet.Pay)
	}
}

// SetupDriverPlanRoutes sets up plan catalog and purchase routes
func SetupDriverPlanRoutes(r *gin.RouterGroup, h *Handlers, jwtSecret string) {
	plans := r.Group("/driver/plans")
	plans.Use(middleware.AuthRequired(jwtSecret), middleware.DriverRequired())
	{
		plans.GET("", h.Plan.ListPlans)
		plans.GET("/current", h.Plan.CurrentPlan)
		plans.POST("/purchase", h.Plan.Purchase)
	}
}

// SetupAdminRoutes sets up withdrawal review and ledger routes
func SetupAdminRoutes(r *gin.RouterGroup, h *Handlers, jwtSecret string) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(jwtSecret), middleware.AdminRequired())
	{
		admin.GET("/withdrawals", h.Withdrawal.ListByStatus)
		admin.POST("/withdrawals/:id/approve", h.Withdrawal.Approve)
		admin.POST("/withdrawals/:id/reject", h.Withdrawal.Reject)

		admin.GET("/ledger", h.Admin.Ledger)
		admin.GET("/transactions/:paymentId", h.Admin.FindTransaction)
		admin.GET("/wallets/:kind/:id/verify", h.Admin.VerifyWallet)
		admin.POST("/wallets/:kind/:id/cancellation-charge", h.Admin.ChargeCancellation)
	}
}

// Setup registers every route group under /api/v1
func Setup(router *gin.Engine, h *Handlers, jwtSecret string) {
	v1 := router.Group("/api/v1")
	SetupWebhookRoutes(v1, h)
	SetupWalletRoutes(v1, h, jwtSecret)
	SetupDriverPlanRoutes(v1, h, jwtSecret)
	SetupAdminRoutes(v1, h, jwtSecret)
}
