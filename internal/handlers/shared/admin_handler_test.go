package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/config"
	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/memory"
	"goride-wallet/internal/services"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
)

func TestAdminFindTransaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.NewStore()
	log := logger.NewDiscardLogger()
	svc := services.NewWalletService(services.WalletServiceDeps{
		Wallets:    store.Wallets(),
		Transactor: store.Transactor(),
		Config:     config.DefaultWalletConfig(),
		Metrics:    metrics.NewMetrics(prometheus.NewRegistry()),
		Logger:     log,
	})
	rider := models.RiderOwner(primitive.NewObjectID())
	_, err := svc.InitiateDeposit(context.Background(), rider, &services.DepositRequest{
		Amount:           75,
		GatewayPaymentID: "order_admin",
		Provider:         "razorpay",
	})
	require.NoError(t, err)

	h := NewAdminHandler(svc, log)
	router := gin.New()
	router.GET("/admin/transactions/:paymentId", h.FindTransaction)

	get := func(path string) (*httptest.ResponseRecorder, map[string]interface{}) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]interface{}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		return rec, body
	}

	rec, body := get("/admin/transactions/order_admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := body["data"].(map[string]interface{})
	owner := data["owner"].(map[string]interface{})
	assert.Equal(t, rider.ID.Hex(), owner["owner_id"])
	txn := data["transaction"].(map[string]interface{})
	assert.Equal(t, "pending", txn["status"])
	assert.Equal(t, 75.0, txn["amount"])

	rec, body = get("/admin/transactions/order_unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, utils.StatusError, body["status"])
	assert.Equal(t, "TRANSACTION_NOT_FOUND", body["error"].(map[string]interface{})["code"])
}
