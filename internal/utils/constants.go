package utils

import "time"

// Application Constants
const (
	AppName = "GoRideWallet"

	DefaultCurrency = "INR"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL = 24 * time.Hour

	// Request
	RequestIDHeader    = "X-Request-ID"
	MaxWebhookBodySize = 1 << 20
)

// User types carried in the access token
const (
	UserTypeDriver = "driver"
	UserTypeRider  = "rider"
	UserTypeAdmin  = "admin"
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheWebhookPrefix = "webhook:"
)

// Realtime channels
const (
	ChannelWalletUpdates = "wallet_updates"
)

// Event Types
const (
	EventWalletCredited     = "wallet_credited"
	EventWalletDebited      = "wallet_debited"
	EventTransactionFailed  = "transaction_failed"
	EventWithdrawalApproved = "withdrawal_approved"
	EventWithdrawalRejected = "withdrawal_rejected"
	EventPlanActivated      = "plan_activated"
)
