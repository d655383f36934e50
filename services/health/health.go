package health

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/pkg/observer"
	coinsRepo "crypto-ingestor/repositories/coins"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

func New(scheduler gocron.Scheduler, cronTab string, coins coinsRepo.Repository, queue QueueStats) (*Impl, error) {
	service := Impl{coinRepo: coins, queue: queue, now: time.Now}

	_, errJob := scheduler.NewJob(
		gocron.CronJob(cronTab, true),
		gocron.NewTask(func() { service.echo() }),
		gocron.WithName("Check app running"),
	)
	if errJob != nil {
		return nil, errJob
	}

	return &service, nil
}

// OnNotify keeps track of the last successful ingestion steps.
func (service *Impl) OnNotify(e observer.Event) {
	service.mu.Lock()
	defer service.mu.Unlock()

	switch e.E {
	case observer.SnapshotEvent:
		service.lastSnapshot = service.now()
	case observer.HistoryEvent:
		service.lastHistory = service.now()
		service.historyPoints += e.Count
	}
}

func (service *Impl) Report(ctx context.Context) Report {
	service.mu.Lock()
	report := Report{
		LastSnapshot:  service.lastSnapshot,
		LastHistory:   service.lastHistory,
		HistoryPoints: service.historyPoints,
	}
	service.mu.Unlock()

	coins, err := service.coinRepo.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot count coins")
	}
	report.Coins = coins

	tasks, err := service.queue.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot count tasks")
	}
	report.Tasks = tasks

	return report
}

func (service *Impl) echo() {
	report := service.Report(context.Background())

	log.Info().
		Int64("coins", report.Coins).
		Int64("pendingTasks", report.Tasks[entities.TaskPending]).
		Int64("runningTasks", report.Tasks[entities.TaskRunning]).
		Int64("droppedTasks", report.Tasks[entities.TaskDropped]).
		Str("lastSnapshot", since(report.LastSnapshot)).
		Str("lastHistory", since(report.LastHistory)).
		Str("historyPoints", humanize.Comma(int64(report.HistoryPoints))).
		Msgf("Application is running")
}

func since(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
