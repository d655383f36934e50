package application

import (
	"crypto-ingestor/services/health"
	"crypto-ingestor/services/ingestion"
	"crypto-ingestor/services/queue"
	databases "crypto-ingestor/utils/databases"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const shutdownTimeout = 30 * time.Second

type Application interface {
	Run() error
	Shutdown()
}

type Impl struct {
	scheduler        gocron.Scheduler
	healthService    health.Service
	ingestionService *ingestion.Impl
	queue            *queue.Impl
	db               databases.SqlConnection
	fetchOnStartup   bool
}
