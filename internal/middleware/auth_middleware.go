package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
)

// Context keys set by AuthRequired
const (
	ContextUserID   = "user_id"
	ContextUserType = "user_type"
	ContextOwnerID  = "owner_id"
)

// AuthRequired middleware validates JWT token and sets user context
func AuthRequired(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secretKey)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", utils.ErrInvalidToken)
			c.Abort()
			return
		}
		if claims.UserID.IsZero() {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user ID in token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserType, claims.UserType)
		c.Set(ContextOwnerID, claims.OwnerID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID))

		c.Next()
	}
}

func requireUserType(message string, allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType, exists := c.Get(ContextUserType)
		if !exists {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "User type not found")
			c.Abort()
			return
		}

		userTypeStr, _ := userType.(string)
		for _, t := range allowed {
			if userTypeStr == t {
				c.Next()
				return
			}
		}

		utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message)
		c.Abort()
	}
}

// AdminRequired middleware ensures user is an admin
func AdminRequired() gin.HandlerFunc {
	return requireUserType("Admin access required", utils.UserTypeAdmin)
}

// DriverRequired middleware ensures user is a driver
func DriverRequired() gin.HandlerFunc {
	return requireUserType("Driver access required", utils.UserTypeDriver)
}

// RiderRequired middleware ensures user is a rider
func RiderRequired() gin.HandlerFunc {
	return requireUserType("Rider access required", utils.UserTypeRider)
}

// WalletOwnerRequired admits drivers and riders, the two kinds of user that
// hold a personal wallet.
func WalletOwnerRequired() gin.HandlerFunc {
	return requireUserType("Wallet owner access required", utils.UserTypeDriver, utils.UserTypeRider)
}

// CurrentOwner returns the wallet owner of an authenticated driver or rider.
func CurrentOwner(c *gin.Context) (models.Owner, bool) {
	ownerID, ok := c.Get(ContextOwnerID)
	if !ok {
		return models.Owner{}, false
	}
	id, ok := ownerID.(primitive.ObjectID)
	if !ok || id.IsZero() {
		return models.Owner{}, false
	}

	switch c.GetString(ContextUserType) {
	case utils.UserTypeDriver:
		return models.DriverOwner(id), true
	case utils.UserTypeRider:
		return models.RiderOwner(id), true
	}
	return models.Owner{}, false
}

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, ok := c.Get(ContextUserID)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := userID.(primitive.ObjectID)
	return id, ok && !id.IsZero()
}
