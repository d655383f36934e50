package ingestion

import (
	"context"
	"crypto-ingestor/models/constants"
	"crypto-ingestor/services/queue"
	"encoding/json"
	"fmt"
	"time"
)

type queueDispatcher struct {
	queue     queue.Service
	uniqueTTL time.Duration
}

// NewQueueDispatcher backs a Dispatcher with the task queue. A coin history
// task is not enqueued again while an identical one is pending or running,
// for uniqueTTL at most. Backfills are never deduplicated: the one scheduled
// by the first snapshot must not be absorbed by an earlier, empty one.
func NewQueueDispatcher(q queue.Service, uniqueTTL time.Duration) Dispatcher {
	return &queueDispatcher{queue: q, uniqueTTL: uniqueTTL}
}

func (d *queueDispatcher) FetchTopCoins(ctx context.Context, n int) error {
	_, err := d.queue.Enqueue(ctx, constants.TaskFetchTopCoins, TopCoinsArgs{N: n})
	return err
}

func (d *queueDispatcher) FetchCoinHistory(ctx context.Context, coinID string, days int, pointDelay time.Duration) error {
	_, err := d.queue.Enqueue(ctx, constants.TaskFetchCoinHistory,
		CoinHistoryArgs{CoinID: coinID, Days: days, PointDelay: pointDelay},
		d.uniqueOptions()...)
	return err
}

func (d *queueDispatcher) FetchAllCoinsHistory(ctx context.Context, days int, coinDelay time.Duration) error {
	_, err := d.queue.Enqueue(ctx, constants.TaskFetchAllCoinsHistory,
		AllCoinsHistoryArgs{Days: days, CoinDelay: coinDelay})
	return err
}

func (d *queueDispatcher) uniqueOptions() []queue.EnqueueOption {
	if d.uniqueTTL <= 0 {
		return nil
	}
	return []queue.EnqueueOption{queue.WithUnique(d.uniqueTTL)}
}

// Register binds the ingestion tasks to their queue names.
func Register(q queue.Service, service Service, cfg Config) {
	q.Register(constants.TaskFetchTopCoins, func(ctx context.Context, payload []byte) error {
		var args TopCoinsArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		if args.N <= 0 {
			args.N = cfg.TopCoinsLimit
		}
		return service.FetchTopCoins(ctx, args.N)
	})

	q.Register(constants.TaskFetchCoinHistory, func(ctx context.Context, payload []byte) error {
		var args CoinHistoryArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		if args.Days <= 0 {
			args.Days = cfg.HistoryDays
		}
		return service.FetchCoinHistory(ctx, args.CoinID, args.Days, args.PointDelay)
	})

	q.Register(constants.TaskFetchAllCoinsHistory, func(ctx context.Context, payload []byte) error {
		var args AllCoinsHistoryArgs
		if err := decode(payload, &args); err != nil {
			return err
		}
		if args.Days <= 0 {
			args.Days = cfg.HistoryDays
		}
		return service.FetchAllCoinsHistory(ctx, args.Days, args.CoinDelay)
	})
}

func decode(payload []byte, args any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, args); err != nil {
		return fmt.Errorf("%w: %w", queue.ErrInvalidPayload, err)
	}
	return nil
}
