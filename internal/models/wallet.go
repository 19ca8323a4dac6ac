package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OwnerKind string

const (
	OwnerKindDriver   OwnerKind = "driver"
	OwnerKindRider    OwnerKind = "rider"
	OwnerKindPlatform OwnerKind = "platform"
)

func (k OwnerKind) IsValid() bool {
	switch k {
	case OwnerKindDriver, OwnerKindRider, OwnerKindPlatform:
		return true
	}
	return false
}

// Owner identifies a wallet. The platform wallet has a nil ID.
type Owner struct {
	Kind OwnerKind          `json:"owner_kind" bson:"owner_kind"`
	ID   primitive.ObjectID `json:"owner_id" bson:"owner_id"`
}

func PlatformOwner() Owner {
	return Owner{Kind: OwnerKindPlatform, ID: primitive.NilObjectID}
}

func DriverOwner(id primitive.ObjectID) Owner {
	return Owner{Kind: OwnerKindDriver, ID: id}
}

func RiderOwner(id primitive.ObjectID) Owner {
	return Owner{Kind: OwnerKindRider, ID: id}
}

func (o Owner) String() string {
	if o.Kind == OwnerKindPlatform {
		return string(o.Kind)
	}
	return string(o.Kind) + ":" + o.ID.Hex()
}

// Wallet is the single-document ledger of one owner. TotalDeposited is shown to
// drivers as total earned and TotalWithdrawn to riders as total spent.
type Wallet struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerKind         OwnerKind          `json:"owner_kind" bson:"owner_kind"`
	OwnerID           primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	Balance           float64            `json:"balance" bson:"balance"`
	TotalDeposited    float64            `json:"total_deposited" bson:"total_deposited"`
	TotalWithdrawn    float64            `json:"total_withdrawn" bson:"total_withdrawn"`
	TotalDeductions   float64            `json:"total_deductions" bson:"total_deductions"`
	Currency          string             `json:"currency" bson:"currency"`
	Transactions      []Transaction      `json:"transactions" bson:"transactions"`
	LastTransactionAt *time.Time         `json:"last_transaction_at,omitempty" bson:"last_transaction_at,omitempty"`
	Version           int64              `json:"version" bson:"version"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

func NewWallet(owner Owner, currency string) *Wallet {
	now := time.Now()
	return &Wallet{
		OwnerKind:    owner.Kind,
		OwnerID:      owner.ID,
		Currency:     currency,
		Transactions: []Transaction{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (w *Wallet) Owner() Owner {
	return Owner{Kind: w.OwnerKind, ID: w.OwnerID}
}

// Clone returns a copy that shares no mutable state with w.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	c := *w
	c.Transactions = make([]Transaction, len(w.Transactions))
	copy(c.Transactions, w.Transactions)
	return &c
}

// FindByGatewayPaymentID returns a pointer into w.Transactions, or nil.
// Compensating refund entries carry the original id in RelatedPaymentID and are
// never matched.
func (w *Wallet) FindByGatewayPaymentID(paymentID string) *Transaction {
	if paymentID == "" {
		return nil
	}
	for i := range w.Transactions {
		if w.Transactions[i].GatewayPaymentID == paymentID {
			return &w.Transactions[i]
		}
	}
	return nil
}

func (w *Wallet) FindByRelatedRequest(requestID primitive.ObjectID, kind TransactionKind) *Transaction {
	for i := range w.Transactions {
		t := &w.Transactions[i]
		if t.Kind == kind && t.RelatedRequestID != nil && *t.RelatedRequestID == requestID {
			return t
		}
	}
	return nil
}

func (w *Wallet) FindByReference(reference string, direction TransactionDirection) *Transaction {
	if reference == "" {
		return nil
	}
	for i := range w.Transactions {
		t := &w.Transactions[i]
		if t.Reference == reference && t.Direction == direction {
			return t
		}
	}
	return nil
}

func (w *Wallet) FindByID(id primitive.ObjectID) *Transaction {
	for i := range w.Transactions {
		if w.Transactions[i].ID == id {
			return &w.Transactions[i]
		}
	}
	return nil
}

// Append adds t to the history and returns a pointer to the stored copy.
func (w *Wallet) Append(t Transaction) *Transaction {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	w.Transactions = append(w.Transactions, t)
	created := t.CreatedAt
	w.LastTransactionAt = &created
	return &w.Transactions[len(w.Transactions)-1]
}

func (w *Wallet) TransactionsByStatus(status TransactionStatus) []Transaction {
	result := make([]Transaction, 0, len(w.Transactions))
	for i := len(w.Transactions) - 1; i >= 0; i-- {
		if status == "" || w.Transactions[i].Status == status {
			result = append(result, w.Transactions[i])
		}
	}
	return result
}

// RoundAmount rounds to minor-unit precision.
func RoundAmount(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// LedgerEntry is one row of the owner-joined platform ledger view.
type LedgerEntry struct {
	WalletID      primitive.ObjectID `json:"wallet_id" bson:"wallet_id"`
	OwnerKind     OwnerKind          `json:"owner_kind" bson:"owner_kind"`
	OwnerID       primitive.ObjectID `json:"owner_id" bson:"owner_id"`
	OwnerName     string             `json:"owner_name,omitempty" bson:"owner_name,omitempty"`
	WalletBalance float64            `json:"wallet_balance" bson:"wallet_balance"`
	Transaction   Transaction        `json:"transaction" bson:"transaction"`
}

type LedgerFilter struct {
	OwnerKind OwnerKind
	OwnerID   *primitive.ObjectID
	Status    TransactionStatus
	Kind      TransactionKind
}
