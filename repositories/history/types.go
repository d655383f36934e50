package history

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"

	"github.com/shopspring/decimal"
)

// Point is one daily price waiting to be reconciled.
type Point struct {
	Date  string
	Price decimal.Decimal
}

type Repository interface {
	UpsertPoint(ctx context.Context, coinID uint, date string, price decimal.Decimal) error
	UpsertPoints(ctx context.Context, coinID uint, points []Point) error
	ListForCoin(ctx context.Context, coinID uint) ([]entities.HistoricalPrice, error)
	Count(ctx context.Context) (int64, error)
}

type Impl struct {
	db databases.SqlConnection
}
