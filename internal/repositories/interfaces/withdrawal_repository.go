package interfaces

import (
	"context"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WithdrawalRepository interface {
	Create(ctx context.Context, request *models.WithdrawalRequest) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error)
	ListByOwner(ctx context.Context, owner models.Owner, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error)
	// MarkProcessed moves a pending request to status. ErrConditionFailed when
	// the request is no longer pending.
	MarkProcessed(ctx context.Context, id primitive.ObjectID, status models.WithdrawalStatus, adminID *primitive.ObjectID, notes string, at time.Time) error
	SetPayoutStatus(ctx context.Context, id primitive.ObjectID, payoutStatus string) error
}
