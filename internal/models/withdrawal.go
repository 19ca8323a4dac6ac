package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WithdrawalStatus string
type PayoutMethod string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"

	PayoutMethodBankTransfer PayoutMethod = "bank_transfer"
	PayoutMethodUPI          PayoutMethod = "upi"
)

type WithdrawalRequest struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	OwnerKind     OwnerKind           `json:"owner_kind" bson:"owner_kind"`
	OwnerID       primitive.ObjectID  `json:"owner_id" bson:"owner_id"`
	Amount        float64             `json:"amount" bson:"amount"`
	PaymentMethod PayoutMethod        `json:"payment_method" bson:"payment_method"`
	PayoutDetails PayoutDetails       `json:"payout_details" bson:"payout_details"`
	Status        WithdrawalStatus    `json:"status" bson:"status"`
	TransactionID primitive.ObjectID  `json:"transaction_id" bson:"transaction_id"`
	AdminNotes    string              `json:"admin_notes,omitempty" bson:"admin_notes,omitempty"`
	ProcessedBy   *primitive.ObjectID `json:"processed_by,omitempty" bson:"processed_by,omitempty"`
	ProcessedAt   *time.Time          `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	// PayoutStatus mirrors payout-provider callbacks. It never drives Status.
	PayoutStatus string    `json:"payout_status,omitempty" bson:"payout_status,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

func (r *WithdrawalRequest) Owner() Owner {
	return Owner{Kind: r.OwnerKind, ID: r.OwnerID}
}

// PayoutDetails is immutable once the request is submitted.
type PayoutDetails struct {
	BankAccount *BankAccount `json:"bank_account,omitempty" bson:"bank_account,omitempty"`
	UPIID       string       `json:"upi_id,omitempty" bson:"upi_id,omitempty"`
}

type BankAccount struct {
	AccountNumber string `json:"account_number" bson:"account_number"`
	IFSCCode      string `json:"ifsc_code" bson:"ifsc_code"`
	AccountName   string `json:"account_name" bson:"account_name"`
	BankName      string `json:"bank_name,omitempty" bson:"bank_name,omitempty"`
}
