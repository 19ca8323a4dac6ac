package models

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentEventType is a gateway callback normalized across providers.
type PaymentEventType string

const (
	PaymentEventCaptured      PaymentEventType = "captured"
	PaymentEventPaid          PaymentEventType = "paid"
	PaymentEventAuthorized    PaymentEventType = "authorized"
	PaymentEventFailed        PaymentEventType = "failed"
	PaymentEventAttemptFailed PaymentEventType = "attempt_failed"
	PaymentEventVoided        PaymentEventType = "voided"
	PaymentEventCancelled     PaymentEventType = "cancelled"
	PaymentEventRefunded      PaymentEventType = "refunded"
	PaymentEventPartialRefund PaymentEventType = "partial_refund"
	PaymentEventIgnored       PaymentEventType = "ignored"
)

// Keys read from gateway notes / metadata. camelCase aliases are accepted for
// clients that still send the older shape.
const (
	MetadataOwnerKind        = "owner_kind"
	MetadataOwnerID          = "owner_id"
	MetadataTransactionKind  = "transaction_kind"
	MetadataRelatedRequestID = "related_request_id"
	MetadataPlanID           = "plan_id"
)

var metadataAliases = map[string][]string{
	MetadataOwnerKind:        {"ownerKind", "userType"},
	MetadataOwnerID:          {"ownerId", "userId", "driverId", "riderId"},
	MetadataTransactionKind:  {"transactionKind", "type"},
	MetadataRelatedRequestID: {"relatedRequestId", "requestId"},
	MetadataPlanID:           {"planId"},
}

var (
	ErrTransactionKindMissing = errors.New("transaction type not specified")
	ErrInvalidMetadata        = errors.New("invalid payment metadata")
)

// TransactionMetadata is the closed set of metadata shapes a gateway callback may
// carry. Implementations live in this file only.
type TransactionMetadata interface {
	TransactionKind() TransactionKind
	// LedgerOwner is the wallet the transaction is recorded on.
	LedgerOwner() Owner
	isTransactionMetadata()
}

type DepositMetadata struct {
	Owner Owner
}

func (DepositMetadata) TransactionKind() TransactionKind { return TransactionKindDeposit }
func (m DepositMetadata) LedgerOwner() Owner             { return m.Owner }
func (DepositMetadata) isTransactionMetadata()           {}

// PlanPurchaseMetadata is recorded on the platform wallet; DriverID receives the plan.
type PlanPurchaseMetadata struct {
	DriverID primitive.ObjectID
	PlanID   primitive.ObjectID
}

func (PlanPurchaseMetadata) TransactionKind() TransactionKind { return TransactionKindPlanPurchase }
func (PlanPurchaseMetadata) LedgerOwner() Owner               { return PlatformOwner() }
func (PlanPurchaseMetadata) isTransactionMetadata()           {}

type WithdrawalMetadata struct {
	Owner     Owner
	RequestID primitive.ObjectID
}

func (WithdrawalMetadata) TransactionKind() TransactionKind { return TransactionKindWithdrawal }
func (m WithdrawalMetadata) LedgerOwner() Owner             { return m.Owner }
func (WithdrawalMetadata) isTransactionMetadata()           {}

// ParseTransactionMetadata validates the loosely typed gateway bag at the boundary.
func ParseTransactionMetadata(raw map[string]string) (TransactionMetadata, error) {
	normalized := strings.ToLower(strings.TrimSpace(metadataValue(raw, MetadataTransactionKind)))
	kind := TransactionKind(strings.ReplaceAll(normalized, "_", "-"))
	if kind == "" {
		return nil, ErrTransactionKindMissing
	}

	switch kind {
	case TransactionKindDeposit:
		owner, err := parseOwner(raw)
		if err != nil {
			return nil, err
		}
		return DepositMetadata{Owner: owner}, nil

	case TransactionKindPlanPurchase:
		driverID, err := parseObjectID(raw, MetadataOwnerID)
		if err != nil {
			return nil, err
		}
		if ownerKind := metadataValue(raw, MetadataOwnerKind); ownerKind != "" && OwnerKind(ownerKind) != OwnerKindDriver {
			return nil, fmt.Errorf("%w: plan purchases belong to drivers, got %q", ErrInvalidMetadata, ownerKind)
		}
		planID, err := parseObjectID(raw, MetadataPlanID)
		if err != nil {
			return nil, err
		}
		return PlanPurchaseMetadata{DriverID: driverID, PlanID: planID}, nil

	case TransactionKindWithdrawal:
		owner, err := parseOwner(raw)
		if err != nil {
			return nil, err
		}
		requestID, err := parseObjectID(raw, MetadataRelatedRequestID)
		if err != nil {
			return nil, err
		}
		return WithdrawalMetadata{Owner: owner, RequestID: requestID}, nil
	}

	return nil, fmt.Errorf("%w: unsupported transaction type %q", ErrInvalidMetadata, kind)
}

func parseOwner(raw map[string]string) (Owner, error) {
	kind := OwnerKind(metadataValue(raw, MetadataOwnerKind))
	if kind != OwnerKindDriver && kind != OwnerKindRider {
		return Owner{}, fmt.Errorf("%w: owner kind %q", ErrInvalidMetadata, kind)
	}
	id, err := parseObjectID(raw, MetadataOwnerID)
	if err != nil {
		return Owner{}, err
	}
	return Owner{Kind: kind, ID: id}, nil
}

func parseObjectID(raw map[string]string, key string) (primitive.ObjectID, error) {
	value := metadataValue(raw, key)
	if value == "" {
		return primitive.NilObjectID, fmt.Errorf("%w: %s is required", ErrInvalidMetadata, key)
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s is not a valid id", ErrInvalidMetadata, key)
	}
	return id, nil
}

func metadataValue(raw map[string]string, key string) string {
	if v, ok := raw[key]; ok && v != "" {
		return v
	}
	for _, alias := range metadataAliases[key] {
		if v, ok := raw[alias]; ok && v != "" {
			return v
		}
	}
	return ""
}
