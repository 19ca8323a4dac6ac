package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
)

const testSecret = "test-secret"

func newAuthRouter(guard gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/wallet", AuthRequired(testSecret), guard, func(c *gin.Context) {
		owner, ok := CurrentOwner(c)
		if !ok {
			c.String(http.StatusOK, "no-owner")
			return
		}
		c.String(http.StatusOK, owner.String())
	})
	return router
}

func get(t *testing.T, router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, userType string, ownerID primitive.ObjectID, secret string) string {
	t.Helper()
	signed, err := utils.GenerateAccessToken(primitive.NewObjectID(), userType, ownerID, secret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestWalletOwnerRequired(t *testing.T) {
	router := newAuthRouter(WalletOwnerRequired())
	driverID := primitive.NewObjectID()

	rec := get(t, router, token(t, utils.UserTypeDriver, driverID, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DriverOwner(driverID).String(), rec.Body.String())

	riderID := primitive.NewObjectID()
	rec = get(t, router, token(t, utils.UserTypeRider, riderID, testSecret))
	assert.Equal(t, models.RiderOwner(riderID).String(), rec.Body.String())

	rec = get(t, router, token(t, utils.UserTypeAdmin, primitive.NilObjectID, testSecret))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthRequiredRejects(t *testing.T) {
	router := newAuthRouter(AdminRequired())

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, router, "Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, router, "Bearer not-a-jwt").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, router, token(t, utils.UserTypeAdmin, primitive.NilObjectID, "other-secret")).Code)
	assert.Equal(t, http.StatusForbidden, get(t, router, token(t, utils.UserTypeDriver, primitive.NewObjectID(), testSecret)).Code)

	rec := get(t, router, token(t, utils.UserTypeAdmin, primitive.NilObjectID, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-owner", rec.Body.String())
}
