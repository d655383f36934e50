package ingestion

import (
	"context"
	"crypto-ingestor/models/constants"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/pkg/observer"
	"crypto-ingestor/pkg/pacing"
	coinsRepo "crypto-ingestor/repositories/coins"
	historyRepo "crypto-ingestor/repositories/history"
	"crypto-ingestor/services/coingecko"
	"crypto-ingestor/services/queue"
	"crypto-ingestor/utils/dates"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

func New(scheduler gocron.Scheduler,
	client coingecko.Client,
	coins coinsRepo.Repository,
	history historyRepo.Repository,
	dispatcher Dispatcher,
	pacer pacing.Pacer,
	cfg Config) (*Impl, error) {
	if cfg.TopCoinsLimit <= 0 {
		cfg.TopCoinsLimit = constants.DefaultTopCoinsLimit
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = constants.DefaultHistoryDays
	}
	if cfg.RetryCountdown <= 0 {
		cfg.RetryCountdown = constants.DefaultRetryCountdown
	}

	service := &Impl{
		client:     client,
		coinRepo:   coins,
		histoRepo:  history,
		dispatcher: dispatcher,
		pacer:      pacer,
		cfg:        cfg,
		observers:  map[observer.Observer]struct{}{},
	}

	if cfg.TopCoinsCronTab != "" {
		_, errTopCoinsJob := scheduler.NewJob(
			gocron.CronJob(cfg.TopCoinsCronTab, true),
			gocron.NewTask(func() { service.schedule(constants.TaskFetchTopCoins, service.dispatchTopCoins) }),
			gocron.WithName("Fetch top coins"),
		)
		if errTopCoinsJob != nil {
			return nil, errTopCoinsJob
		}
	}

	if cfg.HistoryCronTab != "" {
		_, errHistoryJob := scheduler.NewJob(
			gocron.CronJob(cfg.HistoryCronTab, true),
			gocron.NewTask(func() { service.schedule(constants.TaskFetchAllCoinsHistory, service.dispatchBackfill) }),
			gocron.WithName("Fetch coins history"),
		)
		if errHistoryJob != nil {
			return nil, errHistoryJob
		}
	}

	return service, nil
}

func (service *Impl) RegisterObserver(o observer.Observer) {
	service.observers[o] = struct{}{}
}

func (service *Impl) notify(e observer.Event) {
	for o := range service.observers {
		o.OnNotify(e)
	}
}

// ScheduleTopCoins enqueues a snapshot with the configured size.
func (service *Impl) ScheduleTopCoins(ctx context.Context) error {
	return service.dispatchTopCoins(ctx)
}

func (service *Impl) dispatchTopCoins(ctx context.Context) error {
	return service.dispatcher.FetchTopCoins(ctx, service.cfg.TopCoinsLimit)
}

func (service *Impl) dispatchBackfill(ctx context.Context) error {
	return service.dispatcher.FetchAllCoinsHistory(ctx, service.cfg.HistoryDays, service.cfg.CoinDelay)
}

func (service *Impl) schedule(name string, dispatch func(context.Context) error) {
	if err := dispatch(context.Background()); err != nil {
		log.Error().Err(err).Str(constants.LogTaskName, name).Msg("Cannot schedule periodic task")
	}
}

// FetchTopCoins reconciles the n best ranked coins. The first snapshot ever
// written also schedules the history backfill of every coin.
func (service *Impl) FetchTopCoins(ctx context.Context, n int) error {
	log.Info().Int(constants.LogCoinNumber, n).Msg("Start fetching top coins")

	markets, err := service.client.FetchTopCoins(ctx, n)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch top coins")
		return service.failure(err)
	}
	log.Info().Int(constants.LogCoinNumber, len(markets)).Msg("Retrieved top coins")

	snapshots := make([]entities.Coin, 0, len(markets))
	for _, market := range markets {
		coin, ok := toCoin(market)
		if !ok {
			log.Warn().Str(constants.LogCoinID, market.ID).Msg("Invalid market entry, ignored")
			continue
		}
		snapshots = append(snapshots, coin)
	}

	// Evaluated before the upsert: only the snapshot that fills an empty
	// store triggers the backfill.
	count, err := service.coinRepo.Count(ctx)
	if err != nil {
		return service.failure(err)
	}
	wasEmpty := count == 0

	if err = service.coinRepo.UpsertMany(ctx, snapshots); err != nil {
		log.Error().Err(err).Msg("Failed to save top coins")
		return service.failure(err)
	}
	service.notify(observer.Event{E: observer.SnapshotEvent, Count: len(snapshots)})

	if wasEmpty && len(snapshots) > 0 {
		log.Info().Msg("Store was empty, scheduling history backfill")
		if errBackfill := service.dispatchBackfill(ctx); errBackfill != nil {
			// The store is no longer empty, retrying would not bring the
			// backfill back; the periodic history job covers it.
			log.Error().Err(errBackfill).Msg("Cannot schedule history backfill")
			return fmt.Errorf("failed to schedule history backfill: %w", errBackfill)
		}
	}

	log.Info().Msg("End fetching top coins")
	return nil
}

func toCoin(market coingecko.Market) (entities.Coin, bool) {
	price := market.CurrentPrice.Decimal
	volume := market.TotalVolume.Decimal
	if market.ID == "" || price.IsNegative() || volume.IsNegative() {
		return entities.Coin{}, false
	}

	return entities.Coin{
		CoingeckoID:      market.ID,
		Symbol:           strings.ToUpper(market.Symbol),
		Name:             market.Name,
		MarketCapRank:    market.MarketCapRank,
		LastPrice:        price,
		Volume:           volume,
		PercentChange24h: market.PriceChangePercentage24h,
	}, true
}

// FetchCoinHistory reconciles the daily prices of one coin over the trailing
// days, then pauses for pointDelay to spare the upstream rate limit.
func (service *Impl) FetchCoinHistory(ctx context.Context, coinID string, days int, pointDelay time.Duration) error {
	from, to := dates.TrailingWindow(time.Now(), days)
	logger := log.With().Str(constants.LogCoinID, coinID).Int(constants.LogDays, days).Logger()
	logger.Info().Str("from", from).Str("to", to).Msg("Start fetching coin history")

	prices, err := service.client.FetchMarketChart(ctx, coinID, days)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch coin history")
		return service.failure(err)
	}
	if len(prices) == 0 {
		logger.Warn().Msg("No historical prices returned, nothing to save")
		return nil
	}

	coin, err := service.coinRepo.Get(ctx, coinID)
	if err != nil {
		if errors.Is(err, coinsRepo.ErrNotFound) {
			logger.Warn().Msg("Coin does not exist in store, history ignored")
			return nil
		}
		return service.failure(err)
	}

	points := make([]historyRepo.Point, 0, len(prices))
	for _, price := range prices {
		points = append(points, historyRepo.Point{
			Date:  dates.DateFromUnixMilli(price.Timestamp),
			Price: price.Price,
		})
	}

	if err = service.histoRepo.UpsertPoints(ctx, coin.ID, points); err != nil {
		logger.Error().Err(err).Msg("Failed to save coin history")
		return service.failure(err)
	}
	service.notify(observer.NewHistoryEvent(coinID, len(points)))
	logger.Info().
		Int(constants.LogPointNumber, len(points)).
		Msgf("Saved %s historical prices", humanize.Comma(int64(len(points))))

	if errWait := service.pacer.Wait(ctx, pointDelay); errWait != nil {
		logger.Debug().Err(errWait).Msg("Pause after history interrupted")
	}

	return nil
}

// FetchAllCoinsHistory schedules a history task for every known coin, one
// after the other, coinDelay apart.
func (service *Impl) FetchAllCoinsHistory(ctx context.Context, days int, coinDelay time.Duration) error {
	ids, err := service.coinRepo.ListIDs(ctx)
	if err != nil {
		return service.failure(err)
	}
	if len(ids) == 0 {
		log.Info().Msg("No coin in store, no history to fetch")
		return nil
	}

	log.Info().
		Int(constants.LogCoinNumber, len(ids)).
		Int(constants.LogDays, days).
		Dur("expected", time.Duration(len(ids)-1)*coinDelay).
		Msgf("Scheduling history of %s coins", humanize.Comma(int64(len(ids))))

	scheduled := 0
	for i, id := range ids {
		if i > 0 {
			if errWait := service.pacer.Wait(ctx, coinDelay); errWait != nil {
				// Rerunning is harmless: already scheduled coins are deduplicated.
				return service.failure(errWait)
			}
		}

		if errDispatch := service.dispatcher.FetchCoinHistory(ctx, id, days, service.cfg.PointDelay); errDispatch != nil {
			log.Error().Err(errDispatch).Str(constants.LogCoinID, id).Msg("Cannot schedule coin history, skipped")
			continue
		}
		scheduled++
	}

	service.notify(observer.Event{E: observer.BackfillEvent, Count: scheduled})
	log.Info().Int(constants.LogCoinNumber, scheduled).Msg("End scheduling coins history")
	return nil
}

// failure maps an error to the queue retry policy: requests the upstream
// rejected are final, everything else is worth another delivery.
func (service *Impl) failure(err error) error {
	if errors.Is(err, coingecko.ErrClientError) {
		return err
	}
	return queue.Retry(err, service.cfg.RetryCountdown)
}
