package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type Coin struct {
	ID               uint              `json:"-" gorm:"primaryKey"`
	CoingeckoID      string            `json:"id" gorm:"column:coingecko_id;type:varchar(128);uniqueIndex;not null"`
	Symbol           string            `json:"symbol" gorm:"type:varchar(32);not null"`
	Name             string            `json:"name" gorm:"type:varchar(128);not null"`
	MarketCapRank    *int              `json:"marketCapRank"`
	LastPrice        decimal.Decimal   `json:"lastPrice" gorm:"type:varchar(64);not null"`
	Volume           decimal.Decimal   `json:"volume" gorm:"type:varchar(64);not null"`
	PercentChange24h *float64          `json:"percentChange24h" gorm:"column:percent_change_24h"`
	UpdatedAt        time.Time         `json:"updatedAt" gorm:"autoUpdateTime"`
	History          []HistoricalPrice `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}
