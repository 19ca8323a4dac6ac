package services

import (
	"errors"
	"fmt"

	"goride-wallet/internal/models"
	"goride-wallet/pkg/payment"
)

// Authenticity and integration errors. They are permanent: the caller must not retry.
var (
	ErrInvalidSignature = payment.ErrInvalidSignature
	ErrMalformedPayload = payment.ErrMalformedPayload
	ErrTypeNotSpecified = models.ErrTransactionKindMissing
	ErrInvalidMetadata  = models.ErrInvalidMetadata
	ErrUnknownProvider  = errors.New("unknown payment provider")
)

// Audit errors. The transaction is left failed for manual reconciliation.
var (
	ErrAmountMismatch = errors.New("amount does not match recorded transaction")
	ErrKindMismatch   = errors.New("transaction type does not match recorded transaction")
)

// Domain validation errors
var (
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrBelowMinimumDeposit     = errors.New("amount is below the minimum deposit")
	ErrBelowMinimumWithdrawal  = errors.New("amount is below the minimum withdrawal")
	ErrInsufficientBalance     = errors.New("insufficient wallet balance")
	ErrDuplicatePayment        = errors.New("payment id already pending on this wallet")
	ErrRequestAlreadyProcessed = errors.New("withdrawal request already processed")
	ErrInvalidPayoutDetails    = errors.New("payout details do not match payment method")
	ErrInvalidOwner            = errors.New("invalid wallet owner")
	ErrInvalidTransition       = errors.New("transition not allowed")
	ErrAlreadyTerminal         = errors.New("transaction already settled")
	ErrPlanInactive            = errors.New("plan is not available for purchase")
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")
	ErrDriverNotFound      = errors.New("driver not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrConcurrentUpdate    = errors.New("too many concurrent updates, try again")
)

// TerminalStateError reports the status a transaction already settled in.
type TerminalStateError struct {
	Status models.TransactionStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("transaction already %s", e.Status)
}

func (e *TerminalStateError) Is(target error) bool {
	return target == ErrAlreadyTerminal
}
