package entities

import "github.com/shopspring/decimal"

// HistoricalPrice is the closing price of a coin for one calendar day.
// Day follows dates.DateFormat, so lexical order is chronological order.
type HistoricalPrice struct {
	ID     uint            `json:"-" gorm:"primaryKey"`
	CoinID uint            `json:"-" gorm:"uniqueIndex:idx_coin_date;not null"`
	Date   string          `json:"date" gorm:"type:varchar(10);uniqueIndex:idx_coin_date;not null"`
	Price  decimal.Decimal `json:"price" gorm:"type:varchar(64);not null"`
}
