package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
)

func upiWithdrawal(amount float64) *WithdrawalSubmission {
	return &WithdrawalSubmission{
		Amount:        amount,
		PaymentMethod: models.PayoutMethodUPI,
		PayoutDetails: models.PayoutDetails{UPIID: "driver@okbank"},
	}
}

func bankWithdrawal(amount float64) *WithdrawalSubmission {
	return &WithdrawalSubmission{
		Amount:        amount,
		PaymentMethod: models.PayoutMethodBankTransfer,
		PayoutDetails: models.PayoutDetails{BankAccount: &models.BankAccount{
			AccountNumber: "123456789012",
			IFSCCode:      "HDFC0001234",
			AccountName:   "Test Driver",
		}},
	}
}

func TestWithdrawalRejectReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 500)

	request, err := f.withdrawals.Submit(ctx, driver, bankWithdrawal(500))
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPending, request.Status)
	assert.False(t, request.TransactionID.IsZero())

	w := f.wallet(t, driver)
	assert.Zero(t, w.Balance)
	reserved := w.FindByID(request.TransactionID)
	require.NotNil(t, reserved)
	assert.Equal(t, models.TransactionStatusPending, reserved.Status)
	assert.Equal(t, request.ID, *reserved.RelatedRequestID)
	assert.True(t, VerifyWallet(w).Consistent)

	adminID := primitive.NewObjectID()
	rejected, err := f.withdrawals.Reject(ctx, request.ID, adminID, "bank details invalid")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, rejected.Status)
	assert.Equal(t, adminID, *rejected.ProcessedBy)

	w = f.wallet(t, driver)
	assert.Equal(t, 500.0, w.Balance)
	assert.Zero(t, w.TotalWithdrawn)
	settled := w.FindByID(request.TransactionID)
	assert.Equal(t, models.TransactionStatusFailed, settled.Status)
	assert.Equal(t, "bank details invalid", settled.Notes)
	assert.True(t, VerifyWallet(w).Consistent)
	assert.Contains(t, f.publisher.events(), utils.EventWithdrawalRejected)

	stored, err := f.withdrawals.GetRequest(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusRejected, stored.Status)
	assert.Equal(t, "bank details invalid", stored.AdminNotes)
}

func TestWithdrawalApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rider := models.RiderOwner(primitive.NewObjectID())
	f.fund(t, rider, 400)

	request, err := f.withdrawals.Submit(ctx, rider, upiWithdrawal(150))
	require.NoError(t, err)
	assert.Equal(t, 250.0, f.balance(t, rider))

	approved, err := f.withdrawals.Approve(ctx, request.ID, primitive.NewObjectID(), "")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusApproved, approved.Status)

	w := f.wallet(t, rider)
	assert.Equal(t, 250.0, w.Balance)
	assert.Equal(t, 150.0, w.TotalWithdrawn)
	assert.Equal(t, models.TransactionStatusCompleted, w.FindByID(request.TransactionID).Status)
	assert.True(t, VerifyWallet(w).Consistent)
}

func TestWithdrawalSecondDecisionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 300)

	request, err := f.withdrawals.Submit(ctx, driver, upiWithdrawal(300))
	require.NoError(t, err)
	_, err = f.withdrawals.Approve(ctx, request.ID, primitive.NewObjectID(), "")
	require.NoError(t, err)

	_, err = f.withdrawals.Approve(ctx, request.ID, primitive.NewObjectID(), "")
	assert.ErrorIs(t, err, ErrRequestAlreadyProcessed)
	_, err = f.withdrawals.Reject(ctx, request.ID, primitive.NewObjectID(), "too late")
	assert.ErrorIs(t, err, ErrRequestAlreadyProcessed)

	w := f.wallet(t, driver)
	assert.Zero(t, w.Balance)
	assert.Equal(t, 300.0, w.TotalWithdrawn)
}

func TestWithdrawalConcurrentDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 500)

	request, err := f.withdrawals.Submit(ctx, driver, upiWithdrawal(500))
	require.NoError(t, err)

	const admins = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, alreadyProcessed int
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func(approve bool) {
			defer wg.Done()
			var err error
			if approve {
				_, err = f.withdrawals.Approve(ctx, request.ID, primitive.NewObjectID(), "")
			} else {
				_, err = f.withdrawals.Reject(ctx, request.ID, primitive.NewObjectID(), "duplicate click")
			}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrRequestAlreadyProcessed):
				alreadyProcessed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, admins-1, alreadyProcessed)

	w := f.wallet(t, driver)
	assert.True(t, VerifyWallet(w).Consistent)
	assert.Equal(t, 500.0, w.Balance+w.TotalWithdrawn, "the reservation settles exactly once")
}

func TestWithdrawalConcurrentSubmissionsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 500)

	const attempts = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, insufficient int
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.withdrawals.Submit(ctx, driver, upiWithdrawal(100))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrInsufficientBalance):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	assert.Equal(t, 5, insufficient)
	assert.Zero(t, f.balance(t, driver))

	pending, total, err := f.withdrawals.ListByStatus(ctx, models.WithdrawalStatusPending, utils.DefaultPaginationParams())
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, pending, 5)
}

func TestWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 500)

	_, err := f.withdrawals.Submit(ctx, driver, upiWithdrawal(50))
	assert.ErrorIs(t, err, ErrBelowMinimumWithdrawal)

	_, err = f.withdrawals.Submit(ctx, driver, upiWithdrawal(-5))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.withdrawals.Submit(ctx, driver, upiWithdrawal(600))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = f.withdrawals.Submit(ctx, models.PlatformOwner(), upiWithdrawal(200))
	assert.ErrorIs(t, err, ErrInvalidOwner)

	noUPI := upiWithdrawal(200)
	noUPI.PayoutDetails.UPIID = " "
	_, err = f.withdrawals.Submit(ctx, driver, noUPI)
	assert.ErrorIs(t, err, ErrInvalidPayoutDetails)

	mixed := bankWithdrawal(200)
	mixed.PayoutDetails.UPIID = "driver@okbank"
	_, err = f.withdrawals.Submit(ctx, driver, mixed)
	assert.ErrorIs(t, err, ErrInvalidPayoutDetails)

	incomplete := bankWithdrawal(200)
	incomplete.PayoutDetails.BankAccount.IFSCCode = ""
	_, err = f.withdrawals.Submit(ctx, driver, incomplete)
	assert.ErrorIs(t, err, ErrInvalidPayoutDetails)

	w := f.wallet(t, driver)
	assert.Equal(t, 500.0, w.Balance, "rejected submissions reserve nothing")
	assert.Len(t, w.Transactions, 1)

	_, err = f.withdrawals.Approve(ctx, primitive.NewObjectID(), primitive.NewObjectID(), "")
	assert.ErrorIs(t, err, ErrWithdrawalNotFound)

	_, _, err = f.withdrawals.ListByStatus(ctx, "paid", utils.DefaultPaginationParams())
	assert.Error(t, err)
}

func TestWithdrawalListByOwnerPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	driver := models.DriverOwner(primitive.NewObjectID())
	other := models.DriverOwner(primitive.NewObjectID())
	f.fund(t, driver, 1000)
	f.fund(t, other, 1000)

	for i := 0; i < 5; i++ {
		_, err := f.withdrawals.Submit(ctx, driver, upiWithdrawal(100))
		require.NoError(t, err)
	}
	_, err := f.withdrawals.Submit(ctx, other, upiWithdrawal(100))
	require.NoError(t, err)

	params := &utils.PaginationParams{Page: 2, PageSize: 2, Order: "desc"}
	requests, total, err := f.withdrawals.ListByOwner(ctx, driver, params)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, requests, 2)
	for _, r := range requests {
		assert.Equal(t, driver, r.Owner())
	}

	params.Page = 3
	requests, _, err = f.withdrawals.ListByOwner(ctx, driver, params)
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}
