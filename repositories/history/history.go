package history

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func New(db databases.SqlConnection) *Impl {
	return &Impl{db: db}
}

func (repo *Impl) UpsertPoint(ctx context.Context, coinID uint, date string, price decimal.Decimal) error {
	return upsert(repo.db.GetDB().WithContext(ctx), coinID, Point{Date: date, Price: price})
}

// UpsertPoints writes the points in order within a single transaction; when
// a day appears twice the last price wins.
func (repo *Impl) UpsertPoints(ctx context.Context, coinID uint, points []Point) error {
	return repo.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, point := range points {
			if err := upsert(tx, coinID, point); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(db *gorm.DB, coinID uint, point Point) error {
	row := entities.HistoricalPrice{CoinID: coinID, Date: point.Date, Price: point.Price}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coin_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"price"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert price of coin %d at %s: %w", coinID, point.Date, err)
	}

	return nil
}

func (repo *Impl) ListForCoin(ctx context.Context, coinID uint) ([]entities.HistoricalPrice, error) {
	var prices []entities.HistoricalPrice
	err := repo.db.GetDB().WithContext(ctx).
		Where("coin_id = ?", coinID).
		Order("date").
		Find(&prices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list prices of coin %d: %w", coinID, err)
	}

	return prices, nil
}

func (repo *Impl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := repo.db.GetDB().WithContext(ctx).Model(&entities.HistoricalPrice{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}

	return count, nil
}
