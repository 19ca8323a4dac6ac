package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/models"
)

func TestTargetStatus(t *testing.T) {
	cases := []struct {
		event    models.PaymentEventType
		expected models.TransactionStatus
		ok       bool
	}{
		{models.PaymentEventCaptured, models.TransactionStatusCompleted, true},
		{models.PaymentEventPaid, models.TransactionStatusCompleted, true},
		{models.PaymentEventAuthorized, models.TransactionStatusPending, true},
		{models.PaymentEventFailed, models.TransactionStatusFailed, true},
		{models.PaymentEventAttemptFailed, models.TransactionStatusPending, true},
		{models.PaymentEventVoided, models.TransactionStatusFailed, true},
		{models.PaymentEventCancelled, models.TransactionStatusFailed, true},
		{models.PaymentEventRefunded, models.TransactionStatusRefunded, true},
		{models.PaymentEventPartialRefund, models.TransactionStatusPartialRefund, true},
		{models.PaymentEventIgnored, "", false},
		{"dispute", "", false},
	}
	for _, tc := range cases {
		status, ok := TargetStatus(tc.event)
		assert.Equal(t, tc.ok, ok, tc.event)
		assert.Equal(t, tc.expected, status, tc.event)
	}
}

func walletWith(balance float64, txn models.Transaction) (*models.Wallet, *models.Transaction) {
	w := models.NewWallet(models.RiderOwner(primitive.NewObjectID()), "INR")
	w.Balance = balance
	return w, w.Append(txn)
}

func TestApplyTransition(t *testing.T) {
	now := time.Now()
	credit := models.Transaction{
		Kind:             models.TransactionKindDeposit,
		Direction:        models.DirectionCredit,
		Amount:           500,
		Status:           models.TransactionStatusPending,
		GatewayPaymentID: "order_1",
	}
	withdrawal := models.Transaction{
		Kind:      models.TransactionKindWithdrawal,
		Direction: models.DirectionDebit,
		Amount:    200,
		Status:    models.TransactionStatusPending,
	}

	cases := []struct {
		name       string
		balance    float64
		txn        models.Transaction
		to         models.TransactionStatus
		refund     float64
		balanceNow float64
		deposited  float64
		withdrawn  float64
		deductions float64
		entries    int
	}{
		{"credit completes", 100, credit, models.TransactionStatusCompleted, 0, 600, 500, 0, 0, 1},
		{"credit fails", 100, credit, models.TransactionStatusFailed, 0, 100, 0, 0, 0, 1},
		{"credit stays pending", 100, credit, models.TransactionStatusPending, 0, 100, 0, 0, 0, 1},
		{"full refund", 800, credit, models.TransactionStatusRefunded, 0, 300, 0, 0, 500, 2},
		{"refund clamps", 120, credit, models.TransactionStatusRefunded, 0, 0, 0, 0, 120, 2},
		{"partial refund", 800, credit, models.TransactionStatusPartialRefund, 150, 650, 0, 0, 150, 2},
		{"partial refund above amount", 800, credit, models.TransactionStatusPartialRefund, 900, 300, 0, 0, 500, 2},
		{"withdrawal completes", 0, withdrawal, models.TransactionStatusCompleted, 0, 0, 0, 200, 0, 1},
		{"withdrawal fails", 0, withdrawal, models.TransactionStatusFailed, 0, 200, 0, 0, 0, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, txn := walletWith(tc.balance, tc.txn)
			transition, err := ApplyTransition(w, txn, tc.to, tc.refund, now)
			require.NoError(t, err)

			assert.Equal(t, tc.balanceNow, w.Balance)
			assert.Equal(t, tc.deposited, w.TotalDeposited)
			assert.Equal(t, tc.withdrawn, w.TotalWithdrawn)
			assert.Equal(t, tc.deductions, w.TotalDeductions)
			assert.Len(t, w.Transactions, tc.entries)
			assert.Equal(t, tc.to, w.Transactions[0].Status)
			assert.Equal(t, models.RoundAmount(tc.balanceNow-tc.balance), transition.BalanceDelta)

			if tc.entries == 2 {
				require.NotNil(t, transition.Compensation)
				assert.Equal(t, models.TransactionKindRefund, transition.Compensation.Kind)
				assert.Equal(t, tc.deductions, transition.Compensation.Amount)
				assert.Equal(t, "order_1", transition.Compensation.RelatedPaymentID)
			}
			if tc.to != models.TransactionStatusPending {
				assert.NotNil(t, w.Transactions[0].SettledAt)
			}
		})
	}
}

func TestApplyTransitionRejectsTerminal(t *testing.T) {
	for _, status := range []models.TransactionStatus{
		models.TransactionStatusCompleted, models.TransactionStatusFailed,
		models.TransactionStatusRefunded, models.TransactionStatusPartialRefund,
	} {
		w, txn := walletWith(100, models.Transaction{
			Kind:      models.TransactionKindDeposit,
			Direction: models.DirectionCredit,
			Amount:    50,
			Status:    status,
		})
		_, err := ApplyTransition(w, txn, models.TransactionStatusCompleted, 0, time.Now())
		assert.ErrorIs(t, err, ErrAlreadyTerminal)

		var terminal *TerminalStateError
		require.True(t, errors.As(err, &terminal))
		assert.Equal(t, status, terminal.Status)
		assert.Equal(t, 100.0, w.Balance)
	}
}

func TestApplyTransitionRejectsDebitRefund(t *testing.T) {
	w, txn := walletWith(100, models.Transaction{
		Kind:      models.TransactionKindWithdrawal,
		Direction: models.DirectionDebit,
		Amount:    50,
		Status:    models.TransactionStatusPending,
	})
	_, err := ApplyTransition(w, txn, models.TransactionStatusRefunded, 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.TransactionStatusPending, w.Transactions[0].Status)

	_, err = ApplyTransition(w, txn, "settled", 0, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAmountsMatch(t *testing.T) {
	assert.True(t, AmountsMatch(500, 500.004))
	assert.True(t, AmountsMatch(0.1+0.2, 0.3))
	assert.False(t, AmountsMatch(500, 500.01))
	assert.False(t, AmountsMatch(500, 400))
}

func TestVerifyWalletDetectsDrift(t *testing.T) {
	w := models.NewWallet(models.DriverOwner(primitive.NewObjectID()), "INR")
	w.Append(models.Transaction{Kind: models.TransactionKindDeposit, Direction: models.DirectionCredit, Amount: 500, Status: models.TransactionStatusCompleted})
	w.Append(models.Transaction{Kind: models.TransactionKindWithdrawal, Direction: models.DirectionDebit, Amount: 100, Status: models.TransactionStatusPending})
	w.Append(models.Transaction{Kind: models.TransactionKindSpend, Direction: models.DirectionDebit, Amount: 50, Status: models.TransactionStatusCompleted})
	w.Append(models.Transaction{Kind: models.TransactionKindDeposit, Direction: models.DirectionCredit, Amount: 70, Status: models.TransactionStatusFailed})
	w.Balance = 350
	w.TotalDeposited = 500
	w.TotalWithdrawn = 50

	result := VerifyWallet(w)
	assert.True(t, result.Consistent, result.Drift)
	assert.Equal(t, 100.0, result.Reserved)

	w.Balance = 400
	result = VerifyWallet(w)
	assert.False(t, result.Consistent)
	require.Len(t, result.Drift, 1)
	assert.Contains(t, result.Drift[0], "balance")
}
