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

type walletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) interfaces.WalletRepository {
	return &walletRepository{
		collection: db.Collection("wallets"),
	}
}

func ownerFilter(owner models.Owner) bson.M {
	return bson.M{"owner_kind": owner.Kind, "owner_id": owner.ID}
}

func (r *walletRepository) GetByOwner(ctx context.Context, owner models.Owner) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, ownerFilter(owner)).Decode(&wallet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if wallet.ID.IsZero() {
		wallet.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, wallet)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicate
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

func (r *walletRepository) CompareAndSwap(ctx context.Context, wallet *models.Wallet, expectedVersion int64) error {
	wallet.Version = expectedVersion + 1
	wallet.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(ctx, bson.M{
		"_id":     wallet.ID,
		"version": expectedVersion,
	}, wallet)
	if err != nil {
		wallet.Version = expectedVersion
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if result.MatchedCount == 0 {
		wallet.Version = expectedVersion
		return interfaces.ErrVersionConflict
	}

	return nil
}

func (r *walletRepository) FindByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"transactions.gateway_payment_id": gatewayPaymentID}).Decode(&wallet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find wallet by payment id: %w", err)
	}

	return &wallet, nil
}

// ListLedger flattens every wallet's history into one page, newest first, with
// the owner's display name joined from the drivers or riders collection.
func (r *walletRepository) ListLedger(ctx context.Context, filter *models.LedgerFilter, params *utils.PaginationParams) ([]*models.LedgerEntry, int64, error) {
	if filter == nil {
		filter = &models.LedgerFilter{}
	}
	if params == nil {
		params = utils.DefaultPaginationParams()
	}

	walletMatch := bson.M{}
	if filter.OwnerKind != "" {
		walletMatch["owner_kind"] = filter.OwnerKind
	}
	if filter.OwnerID != nil {
		walletMatch["owner_id"] = *filter.OwnerID
	}

	txnMatch := bson.M{}
	if filter.Status != "" {
		txnMatch["transactions.status"] = filter.Status
	}
	if filter.Kind != "" {
		txnMatch["transactions.kind"] = filter.Kind
	}

	entriesStages := mongo.Pipeline{}
	for _, stage := range params.GetAggregateStages("transactions.created_at") {
		entriesStages = append(entriesStages, stage)
	}
	entriesStages = append(entriesStages,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "drivers",
			"localField":   "owner_id",
			"foreignField": "_id",
			"as":           "driver",
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "riders",
			"localField":   "owner_id",
			"foreignField": "_id",
			"as":           "rider",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"_id":            0,
			"wallet_id":      "$_id",
			"owner_kind":     1,
			"owner_id":       1,
			"wallet_balance": "$balance",
			"transaction":    "$transactions",
			"owner_name": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$driver.name", 0}},
				bson.M{"$arrayElemAt": bson.A{"$rider.name", 0}},
			}},
		}}},
	)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: walletMatch}},
		{{Key: "$unwind", Value: "$transactions"}},
		{{Key: "$match", Value: txnMatch}},
		{{Key: "$facet", Value: bson.M{
			"total":   bson.A{bson.M{"$count": "count"}},
			"entries": entriesStages,
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer cursor.Close(ctx)

	var result struct {
		Total []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
		Entries []*models.LedgerEntry `bson:"entries"`
	}

	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return nil, 0, fmt.Errorf("failed to decode ledger: %w", err)
		}
	}

	var total int64
	if len(result.Total) > 0 {
		total = result.Total[0].Count
	}
	if result.Entries == nil {
		result.Entries = []*models.LedgerEntry{}
	}

	return result.Entries, total, nil
}
