package ingestion

import (
	"context"
	"crypto-ingestor/pkg/observer"
	"crypto-ingestor/pkg/pacing"
	coinsRepo "crypto-ingestor/repositories/coins"
	historyRepo "crypto-ingestor/repositories/history"
	"crypto-ingestor/services/coingecko"
	"time"
)

// Dispatcher schedules ingestion work; each method places one typed command
// on the task queue and returns once it is persisted.
type Dispatcher interface {
	FetchTopCoins(ctx context.Context, n int) error
	FetchCoinHistory(ctx context.Context, coinID string, days int, pointDelay time.Duration) error
	FetchAllCoinsHistory(ctx context.Context, days int, coinDelay time.Duration) error
}

type TopCoinsArgs struct {
	N int `json:"n"`
}

type CoinHistoryArgs struct {
	CoinID     string        `json:"coinId"`
	Days       int           `json:"days"`
	PointDelay time.Duration `json:"pointDelay"`
}

type AllCoinsHistoryArgs struct {
	Days      int           `json:"days"`
	CoinDelay time.Duration `json:"coinDelay"`
}

type Config struct {
	TopCoinsLimit  int
	HistoryDays    int
	CoinDelay      time.Duration
	PointDelay     time.Duration
	RetryCountdown time.Duration

	// Empty cron tabs disable the corresponding periodic trigger.
	TopCoinsCronTab string
	HistoryCronTab  string
}

type Service interface {
	FetchTopCoins(ctx context.Context, n int) error
	FetchCoinHistory(ctx context.Context, coinID string, days int, pointDelay time.Duration) error
	FetchAllCoinsHistory(ctx context.Context, days int, coinDelay time.Duration) error
	RegisterObserver(o observer.Observer)
}

type Impl struct {
	client     coingecko.Client
	coinRepo   coinsRepo.Repository
	histoRepo  historyRepo.Repository
	dispatcher Dispatcher
	pacer      pacing.Pacer
	cfg        Config
	observers  map[observer.Observer]struct{}
}
