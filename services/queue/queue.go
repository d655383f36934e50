package queue

import (
	"context"
	"crypto-ingestor/models/constants"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/repositories/tasks"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

func New(scheduler gocron.Scheduler, repo tasks.Repository, opts Options) (*Impl, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	service := &Impl{
		repo:       repo,
		clock:      opts.Clock,
		workers:    opts.Workers,
		maxRetries: opts.MaxRetries,
		retention:  opts.Retention,
		sem:        semaphore.NewWeighted(int64(opts.Workers)),
		unique:     cache.New(cache.NoExpiration, 10*time.Minute),
		runCtx:     runCtx,
		cancelRun:  cancel,
		handlers:   map[string]Handler{},
	}

	_, errPollJob := scheduler.NewJob(
		gocron.DurationJob(opts.PollInterval),
		gocron.NewTask(func() { service.poll() }),
		gocron.WithName("Poll task queue"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if errPollJob != nil {
		return nil, errPollJob
	}

	_, errJanitorJob := scheduler.NewJob(
		gocron.CronJob(janitorCronTab, false),
		gocron.NewTask(func() { service.purge() }),
		gocron.WithName("Purge completed tasks"),
	)
	if errJanitorJob != nil {
		return nil, errJanitorJob
	}

	return service, nil
}

func (service *Impl) Register(name string, handler Handler) {
	service.mu.Lock()
	defer service.mu.Unlock()
	service.handlers[name] = handler
}

// Enqueue persists a task; it is delivered once its delay has elapsed.
func (service *Impl) Enqueue(ctx context.Context, name string, args any, opts ...EnqueueOption) (uint, error) {
	if service.stopped.Load() {
		return 0, ErrQueueStopped
	}

	options := enqueueOptions{maxRetries: service.maxRetries}
	for _, opt := range opts {
		opt(&options)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	key := uniqueKey(name, string(payload))
	if options.uniqueTTL > 0 {
		if errAdd := service.unique.Add(key, uint(0), options.uniqueTTL); errAdd != nil {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateTask, key)
		}
	}

	task := entities.Task{
		Name:       name,
		Payload:    string(payload),
		Status:     entities.TaskPending,
		RunAt:      service.clock.Now().Add(options.delay),
		MaxRetries: options.maxRetries,
	}
	if err = service.repo.Create(ctx, &task); err != nil {
		if options.uniqueTTL > 0 {
			service.unique.Delete(key)
		}
		return 0, err
	}
	if options.uniqueTTL > 0 {
		// Owned by the task from now on, released once it reaches a final status.
		service.unique.Set(key, task.ID, options.uniqueTTL)
	}

	log.Debug().
		Uint(constants.LogTaskID, task.ID).
		Str(constants.LogTaskName, name).
		Time(constants.LogTaskRunAt, task.RunAt).
		Msg("Task enqueued")
	return task.ID, nil
}

// Start requeues the tasks a previous process left running, so every task
// is delivered at least once.
func (service *Impl) Start(ctx context.Context) error {
	reset, err := service.repo.ResetRunning(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		log.Warn().Int64("tasks", reset).Msg("Requeued tasks interrupted by a previous shutdown")
	}

	return nil
}

// Shutdown stops claiming tasks and waits for the running ones. When ctx
// expires first, running handlers are cancelled and their tasks are picked
// up again by the next Start.
func (service *Impl) Shutdown(ctx context.Context) error {
	service.stopped.Store(true)
	defer service.cancelRun()

	if err := service.sem.Acquire(ctx, int64(service.workers)); err != nil {
		return fmt.Errorf("tasks still running at shutdown: %w", err)
	}
	service.sem.Release(int64(service.workers))

	return nil
}

// RunPending executes every due task, including the ones enqueued or
// rescheduled while it runs, and returns the number of deliveries.
func (service *Impl) RunPending(ctx context.Context) (int, error) {
	delivered := 0
	for {
		claimed, err := service.repo.ClaimDue(ctx, service.clock.Now(), service.workers)
		if err != nil {
			return delivered, err
		}
		if len(claimed) == 0 {
			return delivered, nil
		}

		for _, task := range claimed {
			service.execute(ctx, task)
		}
		delivered += len(claimed)
	}
}

func (service *Impl) Stats(ctx context.Context) (map[entities.TaskStatus]int64, error) {
	return service.repo.CountByStatus(ctx)
}

func (service *Impl) poll() {
	if service.stopped.Load() {
		return
	}

	free := 0
	for free < service.workers && service.sem.TryAcquire(1) {
		free++
	}
	if free == 0 {
		return
	}

	claimed, err := service.repo.ClaimDue(service.runCtx, service.clock.Now(), free)
	if err != nil {
		service.sem.Release(int64(free))
		log.Error().Err(err).Msg("Cannot claim due tasks, continuing...")
		return
	}
	service.sem.Release(int64(free - len(claimed)))

	for _, task := range claimed {
		go func(task entities.Task) {
			defer service.sem.Release(1)
			service.execute(service.runCtx, task)
		}(task)
	}
}

func (service *Impl) purge() {
	purged, err := service.repo.PurgeDone(service.runCtx, service.clock.Now().Add(-service.retention))
	if err != nil {
		log.Error().Err(err).Msg("Cannot purge completed tasks")
		return
	}
	log.Debug().Int64("tasks", purged).Msg("Completed tasks purged")
}

func (service *Impl) execute(ctx context.Context, task entities.Task) {
	logger := log.With().
		Uint(constants.LogTaskID, task.ID).
		Str(constants.LogTaskName, task.Name).
		Int(constants.LogTaskAttempt, task.Attempts).
		Logger()

	service.mu.RLock()
	handler, ok := service.handlers[task.Name]
	service.mu.RUnlock()

	var err error
	if ok {
		err = run(ctx, handler, []byte(task.Payload))
	} else {
		err = fmt.Errorf("%w: %s", ErrUnknownTask, task.Name)
	}

	// Bookkeeping must land even when the handler context was cancelled.
	bookCtx := context.WithoutCancel(ctx)

	var retryErr *RetryError
	switch {
	case err == nil:
		err = service.repo.Complete(bookCtx, task.ID)
		service.release(task)
		logger.Debug().Msg("Task done")
	case errors.As(err, &retryErr) && task.Attempts <= task.MaxRetries:
		runAt := service.clock.Now().Add(retryErr.Delay)
		logger.Warn().Err(retryErr.Err).Time(constants.LogTaskRunAt, runAt).Msg("Task will be retried")
		err = service.repo.Reschedule(bookCtx, task.ID, runAt, retryErr.Err.Error())
	case errors.As(err, &retryErr):
		logger.Error().Err(retryErr.Err).Msgf("Task dropped after %d attempts", task.Attempts)
		err = service.repo.Finish(bookCtx, task.ID, entities.TaskDropped, retryErr.Err.Error())
		service.release(task)
	default:
		logger.Error().Err(err).Msg("Task failed, not retried")
		err = service.repo.Finish(bookCtx, task.ID, entities.TaskFailed, err.Error())
		service.release(task)
	}

	if err != nil {
		logger.Error().Err(err).Msg("Cannot record task outcome")
	}
}

// release lets identical tasks be enqueued again once this one is over. Keys
// held by another task, enqueued after this one's window expired, are kept.
func (service *Impl) release(task entities.Task) {
	key := uniqueKey(task.Name, task.Payload)
	if owner, found := service.unique.Get(key); found && owner == task.ID {
		service.unique.Delete(key)
	}
}

func uniqueKey(name, payload string) string {
	return name + ":" + payload
}

func run(ctx context.Context, handler Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return handler(ctx, payload)
}
