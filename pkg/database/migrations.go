package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"goride-wallet/pkg/logger"
)

type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		logger:     log.WithField("component", "migrator"),
	}
}

func (m *Migrator) Up() error {
	// Create migrations collection if it doesn't exist
	err := m.createMigrationsCollection()
	if err != nil {
		return err
	}

	// Get current version
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return err
	}

	// Run migrations
	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			m.logger.Infof("Running migration %d: %s", migration.Version, migration.Description)

			err := migration.Up(m.db)
			if err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			err = m.updateVersion(migration.Version)
			if err != nil {
				return fmt.Errorf("failed to update migration version: %w", err)
			}

			m.logger.Infof("Migration %d completed successfully", migration.Version)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collections, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}

	for _, name := range collections {
		if name == "migrations" {
			return nil
		}
	}

	return m.db.CreateCollection(ctx, "migrations")
}

func (m *Migrator) getCurrentVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection("migrations").FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(version int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.db.Collection("migrations").ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create wallets collection with indexes",
			Up: func(db *mongo.Database) error {
				return createWalletsIndexes(db)
			},
		},
		{
			Version:     2,
			Description: "Create withdrawal_requests collection with indexes",
			Up: func(db *mongo.Database) error {
				return createWithdrawalRequestsIndexes(db)
			},
		},
		{
			Version:     3,
			Description: "Create drivers collection with plan purchase indexes",
			Up: func(db *mongo.Database) error {
				return createDriversIndexes(db)
			},
		},
		{
			Version:     4,
			Description: "Create plans collection with indexes",
			Up: func(db *mongo.Database) error {
				return createPlansIndexes(db)
			},
		},
	}
}

func createWalletsIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("wallets")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "transactions.gateway_payment_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "transactions.status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "last_transaction_at", Value: -1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func createWithdrawalRequestsIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("withdrawal_requests")

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func createDriversIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("drivers")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "plan_purchases.gateway_payment_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "profile_status", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func createPlansIndexes(db *mongo.Database) error {
	ctx := context.Background()
	collection := db.Collection("plans")

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "price", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
