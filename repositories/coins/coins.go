package coins

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Columns refreshed when a coin is seen again. updated_at takes the value of
// the incoming row, which gorm stamps on every write.
var upsertColumns = []string{
	"symbol", "name", "market_cap_rank", "last_price", "volume", "percent_change_24h", "updated_at",
}

func New(db databases.SqlConnection) *Impl {
	return &Impl{db: db}
}

func (repo *Impl) Upsert(ctx context.Context, coin entities.Coin) error {
	return upsert(repo.db.GetDB().WithContext(ctx), &coin)
}

func (repo *Impl) UpsertMany(ctx context.Context, coins []entities.Coin) error {
	return repo.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range coins {
			if err := upsert(tx, &coins[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(db *gorm.DB, coin *entities.Coin) error {
	err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "coingecko_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(coin).Error
	if err != nil {
		return fmt.Errorf("failed to upsert coin %s: %w", coin.CoingeckoID, err)
	}

	return nil
}

func (repo *Impl) Get(ctx context.Context, coingeckoID string) (entities.Coin, error) {
	var coin entities.Coin
	err := repo.db.GetDB().WithContext(ctx).Where("coingecko_id = ?", coingeckoID).First(&coin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return coin, fmt.Errorf("%w: %s", ErrNotFound, coingeckoID)
		}
		return coin, fmt.Errorf("failed to get coin %s: %w", coingeckoID, err)
	}

	return coin, nil
}

// ListIDs returns every known external identifier, best ranked first and
// unranked coins last.
func (repo *Impl) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := repo.db.GetDB().WithContext(ctx).
		Model(&entities.Coin{}).
		Order("market_cap_rank IS NULL, market_cap_rank, coingecko_id").
		Pluck("coingecko_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list coins: %w", err)
	}

	return ids, nil
}

func (repo *Impl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := repo.db.GetDB().WithContext(ctx).Model(&entities.Coin{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count coins: %w", err)
	}

	return count, nil
}

func (repo *Impl) Delete(ctx context.Context, coingeckoID string) error {
	result := repo.db.GetDB().WithContext(ctx).Where("coingecko_id = ?", coingeckoID).Delete(&entities.Coin{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete coin %s: %w", coingeckoID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, coingeckoID)
	}

	return nil
}
