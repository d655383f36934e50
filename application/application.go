package application

import (
	"context"
	"crypto-ingestor/models/constants"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/pkg/pacing"
	coinsRepo "crypto-ingestor/repositories/coins"
	historyRepo "crypto-ingestor/repositories/history"
	tasksRepo "crypto-ingestor/repositories/tasks"
	"crypto-ingestor/services/coingecko"
	"crypto-ingestor/services/health"
	"crypto-ingestor/services/ingestion"
	"crypto-ingestor/services/queue"
	databases "crypto-ingestor/utils/databases"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func New() (*Impl, error) {
	db := databases.New(viper.GetString(constants.SqliteURL))
	if errDB := db.Run(); errDB != nil {
		return nil, errDB
	}

	errMigration := db.Migrate(&entities.Coin{}, &entities.HistoricalPrice{}, &entities.Task{})
	if errMigration != nil {
		return nil, errMigration
	}

	clock := clockwork.NewRealClock()
	scheduler, errScheduler := gocron.NewScheduler(gocron.WithLocation(time.UTC), gocron.WithClock(clock))
	if errScheduler != nil {
		return nil, errScheduler
	}

	// Repositories
	coinRepo := coinsRepo.New(db)
	histoRepo := historyRepo.New(db)
	taskRepo := tasksRepo.New(db)

	taskQueue, errQueue := queue.New(scheduler, taskRepo, queue.Options{
		Workers:      viper.GetInt(constants.QueueWorkers),
		PollInterval: viper.GetDuration(constants.QueuePollInterval),
		MaxRetries:   viper.GetInt(constants.MaxRetries),
		Retention:    viper.GetDuration(constants.TaskRetention),
		Clock:        clock,
	})
	if errQueue != nil {
		return nil, errQueue
	}

	client := coingecko.New(coingecko.Config{
		BaseURL: viper.GetString(constants.CoingeckoBaseURL),
		APIKey:  viper.GetString(constants.CoingeckoAPIKey),
		Timeout: viper.GetDuration(constants.CoingeckoTimeout),
	})

	cfg := ingestion.Config{
		TopCoinsLimit:   viper.GetInt(constants.TopCoinsLimit),
		HistoryDays:     viper.GetInt(constants.HistoryDays),
		CoinDelay:       viper.GetDuration(constants.HistoryCoinDelay),
		PointDelay:      viper.GetDuration(constants.HistoryPointDelay),
		RetryCountdown:  viper.GetDuration(constants.RetryCountdown),
		TopCoinsCronTab: viper.GetString(constants.TopCoinsCronTab),
		HistoryCronTab:  viper.GetString(constants.HistoryCronTab),
	}
	dispatcher := ingestion.NewQueueDispatcher(taskQueue, viper.GetDuration(constants.QueueUniqueTTL))

	pacer, errPacer := newPacer()
	if errPacer != nil {
		return nil, errPacer
	}

	ingestionService, errIngestion := ingestion.New(scheduler, client, coinRepo, histoRepo, dispatcher, pacer, cfg)
	if errIngestion != nil {
		return nil, errIngestion
	}
	ingestion.Register(taskQueue, ingestionService, cfg)

	healthService, errHealth := health.New(scheduler, viper.GetString(constants.HealthCronTab), coinRepo, taskQueue)
	if errHealth != nil {
		return nil, errHealth
	}
	ingestionService.RegisterObserver(healthService)

	return &Impl{
		scheduler:        scheduler,
		healthService:    healthService,
		ingestionService: ingestionService,
		queue:            taskQueue,
		db:               db,
		fetchOnStartup:   viper.GetBool(constants.FetchOnStartup),
	}, nil
}

func newPacer() (pacing.Pacer, error) {
	strategy := viper.GetString(constants.PacingStrategy)
	switch strategy {
	case constants.PacingTokenBucket:
		perSecond := viper.GetFloat64(constants.PacingRate)
		burst := viper.GetInt(constants.PacingBurst)
		pacer, err := pacing.NewTokenBucket(perSecond, burst)
		if err != nil {
			return nil, err
		}
		log.Info().Float64("rate", perSecond).Int("burst", burst).Msg("Upstream calls paced by token bucket")
		return pacer, nil
	case constants.PacingFixed:
	default:
		log.Warn().Msgf("Unknown pacing strategy '%s', continue with %s...", strategy, constants.PacingFixed)
	}
	return pacing.NewFixed(), nil
}

func (app *Impl) Run() error {
	if err := app.queue.Start(context.Background()); err != nil {
		return err
	}

	app.scheduler.Start()
	for _, job := range app.scheduler.Jobs() {
		scheduledTime, err := job.NextRun()
		if err == nil {
			log.Info().Msgf("%v scheduled %v", job.Name(), humanize.Time(scheduledTime))
		}
	}

	if app.fetchOnStartup {
		if err := app.ingestionService.ScheduleTopCoins(context.Background()); err != nil {
			log.Error().Err(err).Msg("Cannot schedule initial top coins fetch, continuing...")
		}
	}

	return nil
}

func (app *Impl) Shutdown() {
	if err := app.scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Cannot shutdown scheduler, continuing...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.queue.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Cannot wait for running tasks, continuing...")
	}

	app.db.Shutdown()
	log.Info().Msgf("Application is no longer running")
}
