package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
)

// AmountsMatch compares at minor-unit precision.
func AmountsMatch(recorded, asserted float64) bool {
	return int64(math.Round(recorded*100)) == int64(math.Round(asserted*100))
}

// auditAmount fails a pending gateway credit whose asserted amount differs
// from what was recorded at initiation. No balance effect is applied.
func auditAmount(txn *models.Transaction, asserted float64, now time.Time) error {
	if AmountsMatch(txn.Amount, asserted) {
		return nil
	}
	forceFailed(txn, fmt.Sprintf("amount mismatch: recorded %.2f, gateway asserted %.2f", txn.Amount, asserted), now)
	return fmt.Errorf("%w: recorded %.2f, asserted %.2f", ErrAmountMismatch, txn.Amount, asserted)
}

// guardInitiation enforces one initiation per gateway payment id on a wallet.
// A pending duplicate is rejected. A settled one, including one synthesized
// from an earlier webhook, is returned so the caller can answer idempotently.
func guardInitiation(w *models.Wallet, gatewayPaymentID string) (*models.Transaction, error) {
	existing := w.FindByGatewayPaymentID(gatewayPaymentID)
	if existing == nil {
		return nil, nil
	}
	if existing.Status == models.TransactionStatusPending {
		return nil, ErrDuplicatePayment
	}
	c := *existing
	return &c, nil
}

// Deduper remembers webhook events that were fully reconciled. It is a fast
// path only; the ledger's terminal-state check is what guarantees idempotency.
type Deduper interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func webhookDedupeKey(provider, eventID string) string {
	return utils.CacheWebhookPrefix + provider + ":" + eventID
}

// WalletVerification compares stored counters with the ones rebuilt from the
// transaction history.
type WalletVerification struct {
	OwnerKind  models.OwnerKind `json:"owner_kind"`
	OwnerID    string           `json:"owner_id,omitempty"`
	Consistent bool             `json:"consistent"`
	Stored     WalletTotals     `json:"stored"`
	Expected   WalletTotals     `json:"expected"`
	Reserved   float64          `json:"reserved"`
	// ZeroAmountEntries counts refunds clamped to nothing.
	ZeroAmountEntries int      `json:"zero_amount_entries"`
	Drift             []string `json:"drift,omitempty"`
}

type WalletTotals struct {
	Balance         float64 `json:"balance"`
	TotalDeposited  float64 `json:"total_deposited"`
	TotalWithdrawn  float64 `json:"total_withdrawn"`
	TotalDeductions float64 `json:"total_deductions"`
}

// VerifyWallet rebuilds the counters from settled transactions. Pending debits
// are reservations: they already left the balance but are not yet counted.
func VerifyWallet(w *models.Wallet) *WalletVerification {
	result := &WalletVerification{
		OwnerKind: w.OwnerKind,
		Stored: WalletTotals{
			Balance:         w.Balance,
			TotalDeposited:  w.TotalDeposited,
			TotalWithdrawn:  w.TotalWithdrawn,
			TotalDeductions: w.TotalDeductions,
		},
	}
	if w.OwnerKind != models.OwnerKindPlatform {
		result.OwnerID = w.OwnerID.Hex()
	}

	var deposited, withdrawn, deductions, reserved float64
	for _, txn := range w.Transactions {
		if txn.Amount == 0 && txn.Kind == models.TransactionKindRefund {
			result.ZeroAmountEntries++
		}
		switch {
		case txn.Direction == models.DirectionCredit:
			if txn.Status == models.TransactionStatusCompleted {
				deposited += txn.Amount
			}
		case txn.Status == models.TransactionStatusPending:
			reserved += txn.Amount
		case txn.Status == models.TransactionStatusCompleted:
			switch txn.Kind {
			case models.TransactionKindWithdrawal, models.TransactionKindSpend:
				withdrawn += txn.Amount
			default:
				deductions += txn.Amount
			}
		}
	}

	result.Expected = WalletTotals{
		Balance:         models.RoundAmount(deposited - withdrawn - deductions - reserved),
		TotalDeposited:  models.RoundAmount(deposited),
		TotalWithdrawn:  models.RoundAmount(withdrawn),
		TotalDeductions: models.RoundAmount(deductions),
	}
	result.Reserved = models.RoundAmount(reserved)

	check := func(name string, stored, expected float64) {
		if !AmountsMatch(stored, expected) {
			result.Drift = append(result.Drift, fmt.Sprintf("%s: stored %.2f, expected %.2f", name, stored, expected))
		}
	}
	check("balance", result.Stored.Balance, result.Expected.Balance)
	check("total_deposited", result.Stored.TotalDeposited, result.Expected.TotalDeposited)
	check("total_withdrawn", result.Stored.TotalWithdrawn, result.Expected.TotalWithdrawn)
	check("total_deductions", result.Stored.TotalDeductions, result.Expected.TotalDeductions)

	result.Consistent = len(result.Drift) == 0
	return result
}
