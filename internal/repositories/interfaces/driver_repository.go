package interfaces

import (
	"context"

	"goride-wallet/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DriverRepository interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error)
	// CompareAndSwap has the same contract as WalletRepository.CompareAndSwap.
	CompareAndSwap(ctx context.Context, driver *models.Driver, expectedVersion int64) error
}

type PlanRepository interface {
	Create(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Plan, error)
	ListActive(ctx context.Context) ([]*models.Plan, error)
}
