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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type planRepository struct {
	collection *mongo.Collection
}

func NewPlanRepository(db *mongo.Database) interfaces.PlanRepository {
	return &planRepository{
		collection: db.Collection("plans"),
	}
}

func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	if plan.ID.IsZero() {
		plan.ID = primitive.NewObjectID()
	}
	plan.CreatedAt = time.Now()
	plan.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Plan, error) {
	var plan models.Plan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]*models.Plan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "price", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer cursor.Close(ctx)

	plans := []*models.Plan{}
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, fmt.Errorf("failed to decode plans: %w", err)
	}

	return plans, nil
}
