package coins

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"errors"
)

var (
	ErrNotFound = errors.New("coin not found")
)

type Repository interface {
	Upsert(ctx context.Context, coin entities.Coin) error
	UpsertMany(ctx context.Context, coins []entities.Coin) error
	Get(ctx context.Context, coingeckoID string) (entities.Coin, error)
	ListIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, coingeckoID string) error
}

type Impl struct {
	db databases.SqlConnection
}
