package services

import (
	"context"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
	"goride-wallet/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// WalletUpdate is published on utils.ChannelWalletUpdates after a committed change.
type WalletUpdate struct {
	Event         string                   `json:"event"`
	OwnerKind     models.OwnerKind         `json:"owner_kind"`
	OwnerID       string                   `json:"owner_id,omitempty"`
	Balance       float64                  `json:"balance"`
	TransactionID string                   `json:"transaction_id,omitempty"`
	Kind          models.TransactionKind   `json:"kind,omitempty"`
	Status        models.TransactionStatus `json:"status,omitempty"`
	Amount        float64                  `json:"amount,omitempty"`
	Timestamp     time.Time                `json:"timestamp"`
}

type walletEvents struct {
	publisher Publisher
	logger    *logger.Logger
}

func (e *walletEvents) publish(ctx context.Context, event string, w *models.Wallet, txn *models.Transaction) {
	if e == nil || e.publisher == nil || w == nil {
		return
	}

	update := &WalletUpdate{
		Event:     event,
		OwnerKind: w.OwnerKind,
		Balance:   w.Balance,
		Timestamp: time.Now(),
	}
	if w.OwnerKind != models.OwnerKindPlatform {
		update.OwnerID = w.OwnerID.Hex()
	}
	if txn != nil {
		update.TransactionID = txn.ID.Hex()
		update.Kind = txn.Kind
		update.Status = txn.Status
		update.Amount = txn.Amount
	}

	// The ledger write is already committed; a lost notification is only logged.
	if err := e.publisher.Publish(ctx, utils.ChannelWalletUpdates, update); err != nil {
		e.logger.WithError(err).WithField("event", event).Warn("Failed to publish wallet update")
	}
}

func eventForStatus(txn *models.Transaction) string {
	switch txn.Status {
	case models.TransactionStatusFailed:
		return utils.EventTransactionFailed
	case models.TransactionStatusRefunded, models.TransactionStatusPartialRefund:
		return utils.EventWalletDebited
	}
	if txn.Direction == models.DirectionDebit {
		return utils.EventWalletDebited
	}
	return utils.EventWalletCredited
}
