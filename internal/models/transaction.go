package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionKind string
type TransactionStatus string
type TransactionDirection string

const (
	TransactionKindDeposit            TransactionKind = "deposit"
	TransactionKindWithdrawal         TransactionKind = "withdrawal"
	TransactionKindSpend              TransactionKind = "spend"
	TransactionKindRefund             TransactionKind = "refund"
	TransactionKindPlanPurchase       TransactionKind = "plan-purchase"
	TransactionKindCancellationCharge TransactionKind = "cancellation-charge"

	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusCompleted     TransactionStatus = "completed"
	TransactionStatusFailed        TransactionStatus = "failed"
	TransactionStatusRefunded      TransactionStatus = "refunded"
	TransactionStatusPartialRefund TransactionStatus = "partial-refund"

	DirectionCredit TransactionDirection = "credit"
	DirectionDebit  TransactionDirection = "debit"
)

func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindSpend,
		TransactionKindRefund, TransactionKindPlanPurchase, TransactionKindCancellationCharge:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is accepted from s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusRefunded, TransactionStatusPartialRefund:
		return true
	}
	return false
}

func (s TransactionStatus) IsValid() bool {
	return s == TransactionStatusPending || s.IsTerminal()
}

// Transaction is embedded in a Wallet. Amount is fixed at creation; only the
// status and the settlement fields change afterwards.
type Transaction struct {
	ID               primitive.ObjectID   `json:"id" bson:"_id"`
	Kind             TransactionKind      `json:"kind" bson:"kind"`
	Direction        TransactionDirection `json:"direction" bson:"direction"`
	Amount           float64              `json:"amount" bson:"amount"`
	RequestedAmount  float64              `json:"requested_amount,omitempty" bson:"requested_amount,omitempty"`
	Status           TransactionStatus    `json:"status" bson:"status"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty" bson:"gateway_payment_id,omitempty"`
	Provider         string               `json:"provider,omitempty" bson:"provider,omitempty"`
	RelatedRequestID *primitive.ObjectID  `json:"related_request_id,omitempty" bson:"related_request_id,omitempty"`
	RelatedPaymentID string               `json:"related_payment_id,omitempty" bson:"related_payment_id,omitempty"`
	// Reference keys entries that have no gateway payment id (spends, charges).
	Reference        string               `json:"reference,omitempty" bson:"reference,omitempty"`
	Description      string               `json:"description,omitempty" bson:"description,omitempty"`
	Notes            string               `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt        time.Time            `json:"created_at" bson:"created_at"`
	SettledAt        *time.Time           `json:"settled_at,omitempty" bson:"settled_at,omitempty"`
}
