package interfaces

import (
	"context"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"
)

type WalletRepository interface {
	GetByOwner(ctx context.Context, owner models.Owner) (*models.Wallet, error)
	// Create fails with ErrDuplicate when the owner already has a wallet.
	Create(ctx context.Context, wallet *models.Wallet) error
	// CompareAndSwap replaces the stored wallet only if its version still equals
	// expectedVersion. On success wallet.Version is expectedVersion+1.
	CompareAndSwap(ctx context.Context, wallet *models.Wallet, expectedVersion int64) error
	// FindByGatewayPaymentID returns the wallet holding a transaction with the id.
	FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Wallet, error)
	ListLedger(ctx context.Context, filter *models.LedgerFilter, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error)
}
