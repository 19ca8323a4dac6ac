package mongodb

import (
	"context"

	"goride-wallet/internal/repositories/interfaces"
	"goride-wallet/pkg/database"
)

type transactor struct {
	db *database.MongoDB
}

// NewTransactor requires a replica set or sharded cluster.
func NewTransactor(db *database.MongoDB) interfaces.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.db.RunInTransaction(ctx, fn)
}
