package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type driverRepository struct {
	collection *mongo.Collection
}

func NewDriverRepository(db *mongo.Database) interfaces.DriverRepository {
	return &driverRepository{
		collection: db.Collection("drivers"),
	}
}

func (r *driverRepository) Create(ctx context.Context, driver *models.Driver) error {
	if driver.ID.IsZero() {
		driver.ID = primitive.NewObjectID()
	}
	driver.CreatedAt = time.Now()
	driver.UpdatedAt = time.Now()
	if driver.PlanPurchases == nil {
		driver.PlanPurchases = []models.PlanPurchase{}
	}

	_, err := r.collection.InsertOne(ctx, driver)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create driver: %w", err)
	}

	return nil
}

func (r *driverRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Driver, error) {
	var driver models.Driver
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&driver)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}

	return &driver, nil
}

func (r *driverRepository) CompareAndSwap(ctx context.Context, driver *models.Driver, expectedVersion int64) error {
	driver.Version = expectedVersion + 1
	driver.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{
		"_id":     driver.ID,
		"version": expectedVersion,
	}, driver)
	if err != nil {
		driver.Version = expectedVersion
		return fmt.Errorf("failed to update driver: %w", err)
	}
	if result.MatchedCount == 0 {
		driver.Version = expectedVersion
		return interfaces.ErrVersionConflict
	}

	return nil
}
