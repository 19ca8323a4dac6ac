package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/config"
	"goride-wallet/internal/middleware"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/memory"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
)

const handlerSecret = "handler-secret"

type withdrawalResponse struct {
	Status string                   `json:"status"`
	Data   models.WithdrawalRequest `json:"data"`
	Error  *utils.APIError          `json:"error"`
}

func newWithdrawalRouter(t *testing.T, store *memory.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewDiscardLogger()

	svc := services.NewWithdrawalService(services.WithdrawalServiceDeps{
		Wallets:     store.Wallets(),
		Withdrawals: store.Withdrawals(),
		Transactor:  store.Transactor(),
		Config:      config.DefaultWalletConfig(),
		Metrics:     metrics.NewMetrics(prometheus.NewRegistry()),
		Logger:      log,
	})
	h := NewWithdrawalHandler(svc, log)

	router := gin.New()
	wallet := router.Group("/wallet", middleware.AuthRequired(handlerSecret), middleware.WalletOwnerRequired())
	wallet.POST("/withdrawals", h.Submit)
	admin := router.Group("/admin", middleware.AuthRequired(handlerSecret), middleware.AdminRequired())
	admin.POST("/withdrawals/:id/approve", h.Approve)
	admin.POST("/withdrawals/:id/reject", h.Reject)
	return router
}

func seedBalance(t *testing.T, store *memory.Store, owner models.Owner, amount float64) {
	t.Helper()
	w := models.NewWallet(owner, "INR")
	w.Balance = amount
	w.TotalDeposited = amount
	w.Append(models.Transaction{
		Kind:             models.TransactionKindDeposit,
		Direction:        models.DirectionCredit,
		Amount:           amount,
		Status:           models.TransactionStatusCompleted,
		GatewayPaymentID: "order_seed",
	})
	require.NoError(t, store.Wallets().Create(context.Background(), w))
}

func bearer(t *testing.T, userType string, ownerID primitive.ObjectID) string {
	t.Helper()
	signed, err := utils.GenerateAccessToken(primitive.NewObjectID(), userType, ownerID, handlerSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func sendJSON(t *testing.T, router *gin.Engine, path, authorization string, body interface{}) (*httptest.ResponseRecorder, withdrawalResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var response withdrawalResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &response)
	return rec, response
}

func TestWithdrawalSubmitAndReject(t *testing.T) {
	store := memory.NewStore()
	router := newWithdrawalRouter(t, store)
	driverID := primitive.NewObjectID()
	owner := models.DriverOwner(driverID)
	seedBalance(t, store, owner, 500)

	rec, submitted := sendJSON(t, router, "/wallet/withdrawals", bearer(t, utils.UserTypeDriver, driverID), map[string]interface{}{
		"amount":         300,
		"payment_method": "upi",
		"upi_id":         "driver@okbank",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, models.WithdrawalStatusPending, submitted.Data.Status)
	assert.Equal(t, 300.0, submitted.Data.Amount)

	w, err := store.Wallets().GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 200.0, w.Balance, "reserved at submission")

	admin := bearer(t, utils.UserTypeAdmin, primitive.NilObjectID)
	rejectPath := "/admin/withdrawals/" + submitted.Data.ID.Hex() + "/reject"

	rec, response := sendJSON(t, router, rejectPath, admin, map[string]string{"admin_notes": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "VALIDATION_ERROR", response.Error.Code)

	rec, rejected := sendJSON(t, router, rejectPath, admin, map[string]string{"admin_notes": "Account name mismatch"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Data.Status)
	assert.Equal(t, "Account name mismatch", rejected.Data.AdminNotes)

	w, err = store.Wallets().GetByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, 500.0, w.Balance, "released on rejection")

	rec, response = sendJSON(t, router, "/admin/withdrawals/"+submitted.Data.ID.Hex()+"/approve", admin, map[string]string{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "REQUEST_ALREADY_PROCESSED", response.Error.Code)
}

func TestWithdrawalSubmitRejections(t *testing.T) {
	store := memory.NewStore()
	router := newWithdrawalRouter(t, store)
	riderID := primitive.NewObjectID()
	seedBalance(t, store, models.RiderOwner(riderID), 150)
	auth := bearer(t, utils.UserTypeRider, riderID)

	cases := []struct {
		name   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"missing bank account", map[string]interface{}{"amount": 120, "payment_method": "bank_transfer"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown method", map[string]interface{}{"amount": 120, "payment_method": "cash"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"below minimum", map[string]interface{}{"amount": 50, "payment_method": "upi", "upi_id": "rider@okbank"}, http.StatusBadRequest, "BELOW_MINIMUM_WITHDRAWAL"},
		{"insufficient balance", map[string]interface{}{"amount": 400, "payment_method": "upi", "upi_id": "rider@okbank"}, http.StatusBadRequest, "INSUFFICIENT_BALANCE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, response := sendJSON(t, router, "/wallet/withdrawals", auth, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			require.NotNil(t, response.Error)
			assert.Equal(t, tc.code, response.Error.Code)
		})
	}

	w, err := store.Wallets().GetByOwner(context.Background(), models.RiderOwner(riderID))
	require.NoError(t, err)
	assert.Equal(t, 150.0, w.Balance)
}

func TestWithdrawalDecisionRejectsBadID(t *testing.T) {
	router := newWithdrawalRouter(t, memory.NewStore())
	admin := bearer(t, utils.UserTypeAdmin, primitive.NilObjectID)

	rec, _ := sendJSON(t, router, "/admin/withdrawals/not-an-id/approve", admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, response := sendJSON(t, router, "/admin/withdrawals/"+primitive.NewObjectID().Hex()+"/approve", admin, map[string]string{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, response.Error)
	assert.Equal(t, "WITHDRAWAL_NOT_FOUND", response.Error.Code)
}
