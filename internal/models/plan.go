package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PlanPurchaseStatus string

const (
	PlanPurchasePending PlanPurchaseStatus = "Pending"
	PlanPurchaseSuccess PlanPurchaseStatus = "Success"
	PlanPurchaseFailed  PlanPurchaseStatus = "Failed"
)

// Plan is a subscription a driver buys to stay listed on the platform.
type Plan struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Price     float64            `json:"price" bson:"price"`
	Days      int                `json:"days" bson:"days"`
	IsActive  bool               `json:"is_active" bson:"is_active"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

type CurrentPlan struct {
	PlanID     primitive.ObjectID `json:"plan_id" bson:"plan_id"`
	StartDate  time.Time          `json:"start_date" bson:"start_date"`
	ExpiryDate time.Time          `json:"expiry_date" bson:"expiry_date"`
}

type PlanPurchase struct {
	ID               primitive.ObjectID `json:"id" bson:"_id"`
	PlanID           primitive.ObjectID `json:"plan_id" bson:"plan_id"`
	Amount           float64            `json:"amount" bson:"amount"`
	GatewayPaymentID string             `json:"gateway_payment_id" bson:"gateway_payment_id"`
	Status           PlanPurchaseStatus `json:"status" bson:"status"`
	PurchasedAt      time.Time          `json:"purchased_at" bson:"purchased_at"`
	SettledAt        *time.Time         `json:"settled_at,omitempty" bson:"settled_at,omitempty"`
}
