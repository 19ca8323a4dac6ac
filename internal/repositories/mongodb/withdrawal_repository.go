package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goride-wallet/internal/models"
	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type withdrawalRepository struct {
	collection *mongo.Collection
}

func NewWithdrawalRepository(db *mongo.Database) interfaces.WithdrawalRepository {
	return &withdrawalRepository{
		collection: db.Collection("withdrawal_requests"),
	}
}

func (r *withdrawalRepository) Create(ctx context.Context, request *models.WithdrawalRequest) error {
	if request.ID.IsZero() {
		request.ID = primitive.NewObjectID()
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	return nil
}

func (r *withdrawalRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.WithdrawalRequest, error) {
	var request models.WithdrawalRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get withdrawal request: %w", err)
	}

	return &request, nil
}

func (r *withdrawalRepository) ListByOwner(ctx context.Context, owner models.Owner, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	return r.list(ctx, ownerFilter(owner), params)
}

func (r *withdrawalRepository) ListByStatus(ctx context.Context, status models.WithdrawalStatus, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.list(ctx, filter, params)
}

func (r *withdrawalRepository) list(ctx context.Context, filter bson.M, params *utils.PaginationParams) ([]*models.WithdrawalRequest, int64, error) {
	if params == nil {
		params = utils.DefaultPaginationParams()
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count withdrawal requests: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list withdrawal requests: %w", err)
	}
	defer cursor.Close(ctx)

	requests := []*models.WithdrawalRequest{}
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, 0, fmt.Errorf("failed to decode withdrawal requests: %w", err)
	}

	return requests, total, nil
}

func (r *withdrawalRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, status models.WithdrawalStatus, adminID *primitive.ObjectID, notes string, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.WithdrawalStatusPending},
		bson.M{"$set": bson.M{
			"status":       status,
			"admin_notes":  notes,
			"processed_by": adminID,
			"processed_at": at,
			"updated_at":   at,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update withdrawal request: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return interfaces.ErrConditionFailed
	}

	return nil
}

func (r *withdrawalRepository) SetPayoutStatus(ctx context.Context, id primitive.ObjectID, payoutStatus string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"payout_status": payoutStatus,
			"updated_at":    time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update payout status: %w", err)
	}
	if result.MatchedCount == 0 {
		return interfaces.ErrNotFound
	}

	return nil
}
