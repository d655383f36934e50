package constants

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	ConfigFileName = ".env"

	//nolint:gosec // False positive.
	// Optional CoinGecko API key; anonymous access when empty.
	CoingeckoAPIKey = "COINGECKO_APIKEY"

	// CoinGecko base URL, without trailing slash.
	CoingeckoBaseURL = "COINGECKO_BASE_URL"

	// Connect/read timeout for upstream calls. Duration type.
	CoingeckoTimeout = "COINGECKO_TIMEOUT"

	// SQLITE_URL URL.
	SqliteURL = "SQLITE_URL"

	// Zerolog values from [trace, debug, info, warn, error, fatal, panic].
	LogLevel = "LOG_LEVEL"

	// Number of ranked coins retrieved per snapshot.
	TopCoinsLimit = "TOP_COINS_LIMIT"

	// Cron tab to top coins snapshot.
	TopCoinsCronTab = "TOP_COINS_CRON_TAB"

	// Cron tab to full history refresh.
	HistoryCronTab = "HISTORY_CRON_TAB"

	// Cron tab to health.
	HealthCronTab = "HEALTH_CRON_TAB"

	// Trailing window of the history backfill, in days.
	HistoryDays = "HISTORY_DAYS"

	// Pause between two history tasks scheduled by the backfill. Duration type.
	HistoryCoinDelay = "HISTORY_COIN_DELAY"

	// Pause after a history task has written its points. Duration type.
	HistoryPointDelay = "HISTORY_POINT_DELAY"

	// Delay before a failed task is delivered again. Duration type.
	RetryCountdown = "RETRY_COUNTDOWN"

	// Retries granted to a task after its first attempt.
	MaxRetries = "MAX_RETRIES"

	// Number of tasks executed concurrently.
	QueueWorkers = "QUEUE_WORKERS"

	// Interval between two polls of the task table. Duration type.
	QueuePollInterval = "QUEUE_POLL_INTERVAL"

	// Window during which an identical task is not enqueued twice. Duration type.
	QueueUniqueTTL = "QUEUE_UNIQUE_TTL"

	// Age after which completed tasks are purged. Duration type.
	TaskRetention = "TASK_RETENTION"

	// Pacing strategy, one of [fixed, token_bucket].
	PacingStrategy = "PACING_STRATEGY"

	// Token bucket refill rate, in requests per second.
	PacingRate = "PACING_RATE"

	// Token bucket size.
	PacingBurst = "PACING_BURST"

	// Boolean; enqueue a top coins snapshot as soon as the application starts.
	FetchOnStartup = "FETCH_ON_STARTUP"

	defaultCoingeckoAPIKey   = ""
	defaultCoingeckoBaseURL  = "https://api.coingecko.com/api/v3"
	defaultCoingeckoTimeout  = 10 * time.Second
	defaultSqliteURL         = "crypto-ingestor.db"
	defaultTopCoinsCronTab   = "*/15 * * * *"
	defaultHistoryCronTab    = "0 3 * * *"
	defaultHealthCrontab     = "* * * * *"
	defaultHistoryCoinDelay  = 2 * time.Second
	defaultHistoryPointDelay = 1500 * time.Millisecond
	defaultQueueWorkers      = 4
	defaultQueuePollInterval = time.Second
	defaultQueueUniqueTTL    = 10 * time.Minute
	defaultTaskRetention     = 24 * time.Hour
	defaultPacingStrategy    = PacingFixed
	defaultPacingRate        = 0.5
	defaultPacingBurst       = 1
	defaultFetchOnStartup    = true
	defaultLogLevel          = zerolog.InfoLevel
)

const (
	PacingFixed       = "fixed"
	PacingTokenBucket = "token_bucket"

	DefaultTopCoinsLimit  = 10
	DefaultHistoryDays    = 30
	DefaultRetryCountdown = 10 * time.Second
	DefaultMaxRetries     = 3
)

func GetDefaultConfigValues() map[string]any {
	return map[string]any{
		CoingeckoAPIKey:   defaultCoingeckoAPIKey,
		CoingeckoBaseURL:  defaultCoingeckoBaseURL,
		CoingeckoTimeout:  defaultCoingeckoTimeout,
		SqliteURL:         defaultSqliteURL,
		LogLevel:          defaultLogLevel.String(),
		TopCoinsLimit:     DefaultTopCoinsLimit,
		TopCoinsCronTab:   defaultTopCoinsCronTab,
		HistoryCronTab:    defaultHistoryCronTab,
		HealthCronTab:     defaultHealthCrontab,
		HistoryDays:       DefaultHistoryDays,
		HistoryCoinDelay:  defaultHistoryCoinDelay,
		HistoryPointDelay: defaultHistoryPointDelay,
		RetryCountdown:    DefaultRetryCountdown,
		MaxRetries:        DefaultMaxRetries,
		QueueWorkers:      defaultQueueWorkers,
		QueuePollInterval: defaultQueuePollInterval,
		QueueUniqueTTL:    defaultQueueUniqueTTL,
		TaskRetention:     defaultTaskRetention,
		PacingStrategy:    defaultPacingStrategy,
		PacingRate:        defaultPacingRate,
		PacingBurst:       defaultPacingBurst,
		FetchOnStartup:    defaultFetchOnStartup,
	}
}
