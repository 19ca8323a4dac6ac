package services

import (
	"context"
	"errors"
	"fmt"

	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/pkg/logger"
	"goride-wallet/pkg/metrics"
)

// errSkipWrite tells ledger.update that the mutation found nothing to change.
var errSkipWrite = errors.New("skip write")

// ledger serializes all wallet mutations through a version-checked swap of the
// whole wallet document. Balance, counters and transaction status always move
// in the same write.
type ledger struct {
	wallets    interfaces.WalletRepository
	currency   string
	maxRetries int
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func newLedger(wallets interfaces.WalletRepository, currency string, maxRetries int, m *metrics.Metrics, log *logger.Logger) *ledger {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &ledger{
		wallets:    wallets,
		currency:   currency,
		maxRetries: maxRetries,
		metrics:    m,
		logger:     log,
	}
}

// loadOrCreate returns the owner's wallet, creating it on first use. A lost
// creation race re-reads the winner's document.
func (l *ledger) loadOrCreate(ctx context.Context, owner models.Owner) (*models.Wallet, error) {
	wallet, err := l.wallets.GetByOwner(ctx, owner)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, interfaces.ErrNotFound) {
		return nil, err
	}

	wallet = models.NewWallet(owner, l.currency)
	err = l.wallets.Create(ctx, wallet)
	if err == nil {
		l.logger.LogWalletEvent(string(owner.Kind), owner.ID, "wallet_created", nil)
		return wallet, nil
	}
	if errors.Is(err, interfaces.ErrDuplicate) {
		return l.wallets.GetByOwner(ctx, owner)
	}
	return nil, fmt.Errorf("failed to create wallet: %w", err)
}

// updateOnce reads the wallet, applies mutate and swaps it in. It does not
// retry, so it is safe to call inside a transaction that retries as a whole.
func (l *ledger) updateOnce(ctx context.Context, owner models.Owner, mutate func(w *models.Wallet) error) (*models.Wallet, error) {
	wallet, err := l.wallets.GetByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	expected := wallet.Version
	if err := mutate(wallet); err != nil {
		if errors.Is(err, errSkipWrite) {
			return wallet, nil
		}
		return nil, err
	}

	if err := l.wallets.CompareAndSwap(ctx, wallet, expected); err != nil {
		if errors.Is(err, interfaces.ErrVersionConflict) {
			l.metrics.ObserveVersionConflict("wallet")
		}
		return nil, err
	}
	return wallet, nil
}

// update is updateOnce retried on version conflicts. mutate runs once per
// attempt against a fresh copy and must not accumulate state across calls.
func (l *ledger) update(ctx context.Context, owner models.Owner, mutate func(w *models.Wallet) error) (*models.Wallet, error) {
	if _, err := l.loadOrCreate(ctx, owner); err != nil {
		return nil, err
	}

	var wallet *models.Wallet
	err := l.retryOnConflict(ctx, func(ctx context.Context) error {
		var err error
		wallet, err = l.updateOnce(ctx, owner, mutate)
		return err
	})
	return wallet, err
}

func (l *ledger) retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || !errors.Is(err, interfaces.ErrVersionConflict) {
			return err
		}
		if attempt >= l.maxRetries {
			l.logger.WithField("attempts", attempt).Warn("Giving up after repeated version conflicts")
			return ErrConcurrentUpdate
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
}
