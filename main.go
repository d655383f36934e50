package main

import (
	"crypto-ingestor/application"
	"crypto-ingestor/models/constants"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	initConfig()
	initLog()
	logConfig()
}

func initLog() {
	zerolog.SetGlobalLevel(constants.LogLevelFallback)

	logLevel, err := zerolog.ParseLevel(viper.GetString(constants.LogLevel))
	if err != nil {
		log.Warn().Err(err).Msgf("Log level not set, continue with %s...", constants.LogLevelFallback)
	} else {
		zerolog.SetGlobalLevel(logLevel)
		log.Debug().Msgf("Logger level set to '%s'", logLevel)
	}
}

func initConfig() {
	viper.SetConfigFile(constants.ConfigFileName)

	for configName, defaultValue := range constants.GetDefaultConfigValues() {
		viper.SetDefault(configName, defaultValue)
	}

	err := viper.ReadInConfig()
	if err != nil {
		log.Debug().Str(constants.LogFileName, constants.ConfigFileName).Msgf("Failed to read config file, continue...")
	}

	viper.AutomaticEnv()
}

// logConfig reports the settings that shape the load put on CoinGecko. The
// API key itself is never logged.
func logConfig() {
	if viper.GetString(constants.CoingeckoAPIKey) == "" {
		log.Warn().Msgf("%s not set, calling the public CoinGecko API", constants.CoingeckoAPIKey)
	}

	log.Info().
		Str(constants.LogEndpoint, viper.GetString(constants.CoingeckoBaseURL)).
		Int(constants.LogCoinNumber, viper.GetInt(constants.TopCoinsLimit)).
		Int(constants.LogDays, viper.GetInt(constants.HistoryDays)).
		Str("pacing", viper.GetString(constants.PacingStrategy)).
		Dur("coinDelay", viper.GetDuration(constants.HistoryCoinDelay)).
		Dur("pointDelay", viper.GetDuration(constants.HistoryPointDelay)).
		Int("workers", viper.GetInt(constants.QueueWorkers)).
		Int("maxRetries", viper.GetInt(constants.MaxRetries)).
		Dur("retryCountdown", viper.GetDuration(constants.RetryCountdown)).
		Msg("Ingestion configured")
}

func main() {
	app, err := application.New()
	if err != nil {
		log.Fatal().Err(err).Msgf("Shutting down after failing to instantiate application")
	}

	if err = app.Run(); err != nil {
		log.Fatal().Err(err).Msgf("Shutting down after failing to start application")
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	log.Info().Msgf("%s v%s is now running. Press CTRL-C to exit.", constants.ExternalName, constants.Version)
	sig := <-sc

	log.Info().Str("signal", sig.String()).Msgf("Gracefully shutting down %s, waiting for running tasks...", constants.ExternalName)
	app.Shutdown()
}
