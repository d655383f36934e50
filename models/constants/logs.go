package constants

import "github.com/rs/zerolog"

const (
	LogFileName      = "fileName"
	LogCoinID        = "coinID"
	LogCoinNumber    = "coinNumber"
	LogPointNumber   = "pointNumber"
	LogDays          = "days"
	LogTaskID        = "taskID"
	LogTaskName      = "taskName"
	LogTaskAttempt   = "attempt"
	LogTaskRunAt     = "runAt"
	LogStatusCode    = "statusCode"
	LogEndpoint      = "endpoint"
	LogLevelFallback = zerolog.InfoLevel
)
