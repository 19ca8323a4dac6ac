package services

import (
	"fmt"
	"time"

	"goride-wallet/internal/models"
)

// TargetStatus maps a normalized gateway event to the status it drives a
// pending transaction to. ok is false for events the ledger ignores.
func TargetStatus(event models.PaymentEventType) (models.TransactionStatus, bool) {
	switch event {
	case models.PaymentEventCaptured, models.PaymentEventPaid:
		return models.TransactionStatusCompleted, true
	case models.PaymentEventAuthorized, models.PaymentEventAttemptFailed:
		return models.TransactionStatusPending, true
	case models.PaymentEventFailed, models.PaymentEventVoided, models.PaymentEventCancelled:
		return models.TransactionStatusFailed, true
	case models.PaymentEventRefunded:
		return models.TransactionStatusRefunded, true
	case models.PaymentEventPartialRefund:
		return models.TransactionStatusPartialRefund, true
	}
	return "", false
}

// Transition describes what ApplyTransition did to the wallet.
type Transition struct {
	From         models.TransactionStatus `json:"from"`
	To           models.TransactionStatus `json:"to"`
	BalanceDelta float64                  `json:"balance_delta"`
	// Compensation is the refund entry appended for refund transitions.
	Compensation *models.Transaction `json:"compensation,omitempty"`
}

// ApplyTransition moves txn, which must point into w.Transactions, out of
// pending and applies the balance and counter effect in the same mutation.
//
// Credits (deposit, plan purchase) move the balance on completion. Debits were
// reserved when they were recorded, so completion only moves the counters and
// failure releases the reservation. Refunds debit the wallet, never below
// zero, and append a completed refund entry for the amount actually taken.
func ApplyTransition(w *models.Wallet, txn *models.Transaction, to models.TransactionStatus, refundAmount float64, now time.Time) (*Transition, error) {
	if txn.Status.IsTerminal() {
		return nil, &TerminalStateError{Status: txn.Status}
	}
	if txn.Status != models.TransactionStatusPending || !to.IsValid() {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, txn.Status, to)
	}

	transition := &Transition{From: txn.Status, To: to}
	if to == models.TransactionStatusPending {
		return transition, nil
	}

	isRefund := to == models.TransactionStatusRefunded || to == models.TransactionStatusPartialRefund
	if isRefund && txn.Direction != models.DirectionCredit {
		return nil, fmt.Errorf("%w: %s cannot be refunded", ErrInvalidTransition, txn.Kind)
	}

	before := w.Balance
	amount := txn.Amount

	txn.Status = to
	settledAt := now
	txn.SettledAt = &settledAt

	switch to {
	case models.TransactionStatusCompleted:
		if txn.Direction == models.DirectionCredit {
			w.Balance = models.RoundAmount(w.Balance + amount)
			w.TotalDeposited = models.RoundAmount(w.TotalDeposited + amount)
		} else {
			recordSettledDebit(w, txn.Kind, amount)
		}

	case models.TransactionStatusFailed:
		if txn.Direction == models.DirectionDebit {
			w.Balance = models.RoundAmount(w.Balance + amount)
		}

	case models.TransactionStatusRefunded, models.TransactionStatusPartialRefund:
		requested := amount
		if to == models.TransactionStatusPartialRefund && refundAmount > 0 && refundAmount < amount {
			requested = models.RoundAmount(refundAmount)
		}
		applied := requested
		if applied > w.Balance {
			applied = w.Balance
		}
		w.Balance = models.RoundAmount(w.Balance - applied)
		w.TotalDeductions = models.RoundAmount(w.TotalDeductions + applied)

		description := fmt.Sprintf("Refund of %s", txn.GatewayPaymentID)
		if applied < requested {
			description = fmt.Sprintf("Refund of %s, %.2f of %.2f debited", txn.GatewayPaymentID, applied, requested)
		}

		paymentID := txn.GatewayPaymentID
		provider := txn.Provider
		// txn may point at a stale element once Append grows the slice.
		compensation := w.Append(models.Transaction{
			Kind:             models.TransactionKindRefund,
			Direction:        models.DirectionDebit,
			Amount:           applied,
			RequestedAmount:  requested,
			Status:           models.TransactionStatusCompleted,
			Provider:         provider,
			RelatedPaymentID: paymentID,
			Description:      description,
			CreatedAt:        now,
			SettledAt:        &settledAt,
		})
		c := *compensation
		transition.Compensation = &c
	}

	transition.BalanceDelta = models.RoundAmount(w.Balance - before)
	w.UpdatedAt = now
	return transition, nil
}

// recordSettledDebit moves the counter matching a completed debit. The
// balance was already reduced when the debit was recorded.
func recordSettledDebit(w *models.Wallet, kind models.TransactionKind, amount float64) {
	switch kind {
	case models.TransactionKindWithdrawal, models.TransactionKindSpend:
		w.TotalWithdrawn = models.RoundAmount(w.TotalWithdrawn + amount)
	default:
		w.TotalDeductions = models.RoundAmount(w.TotalDeductions + amount)
	}
}

// forceFailed settles a pending transaction as failed without any balance
// effect and records why.
func forceFailed(txn *models.Transaction, reason string, now time.Time) {
	txn.Status = models.TransactionStatusFailed
	settledAt := now
	txn.SettledAt = &settledAt
	if txn.Description != "" {
		txn.Description = txn.Description + "; " + reason
	} else {
		txn.Description = reason
	}
}
