package health

import (
	"context"
	"crypto-ingestor/models/entities"
	coinsRepo "crypto-ingestor/repositories/coins"
	"sync"
	"time"
)

type QueueStats interface {
	Stats(ctx context.Context) (map[entities.TaskStatus]int64, error)
}

type Service interface {
	Report(ctx context.Context) Report
}

type Report struct {
	Coins         int64
	Tasks         map[entities.TaskStatus]int64
	LastSnapshot  time.Time
	LastHistory   time.Time
	HistoryPoints int
}

type Impl struct {
	coinRepo coinsRepo.Repository
	queue    QueueStats
	now      func() time.Time

	mu            sync.Mutex
	lastSnapshot  time.Time
	lastHistory   time.Time
	historyPoints int
}
