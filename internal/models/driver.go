package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverProfileStatus string

const (
	DriverProfileAwaitingPayment DriverProfileStatus = "awaiting_payment"
	DriverProfileUnderReview     DriverProfileStatus = "under_review"
	DriverProfileApproved        DriverProfileStatus = "approved"
	DriverProfileRejected        DriverProfileStatus = "rejected"
	DriverProfileSuspended       DriverProfileStatus = "suspended"
)

type Driver struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID        primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Name          string              `json:"name" bson:"name"`
	Phone         string              `json:"phone" bson:"phone"`
	ProfileStatus DriverProfileStatus `json:"profile_status" bson:"profile_status"`
	CurrentPlan   *CurrentPlan        `json:"current_plan,omitempty" bson:"current_plan,omitempty"`
	PlanPurchases []PlanPurchase      `json:"plan_purchases" bson:"plan_purchases"`
	Version       int64               `json:"version" bson:"version"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" bson:"updated_at"`
}

func (d *Driver) Clone() *Driver {
	if d == nil {
		return nil
	}
	c := *d
	c.PlanPurchases = make([]PlanPurchase, len(d.PlanPurchases))
	copy(c.PlanPurchases, d.PlanPurchases)
	if d.CurrentPlan != nil {
		plan := *d.CurrentPlan
		c.CurrentPlan = &plan
	}
	return &c
}

func (d *Driver) FindPurchase(gatewayPaymentID string) *PlanPurchase {
	for i := range d.PlanPurchases {
		if d.PlanPurchases[i].GatewayPaymentID == gatewayPaymentID {
			return &d.PlanPurchases[i]
		}
	}
	return nil
}

// HasActivePlan reports whether the current plan expires after now.
func (d *Driver) HasActivePlan(now time.Time) bool {
	return d.CurrentPlan != nil && d.CurrentPlan.ExpiryDate.After(now)
}
