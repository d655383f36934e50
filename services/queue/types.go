package queue

import (
	"context"
	"crypto-ingestor/repositories/tasks"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

const (
	defaultWorkers      = 4
	defaultPollInterval = time.Second
	defaultMaxRetries   = 3
	defaultRetention    = 24 * time.Hour
	janitorCronTab      = "17 * * * *"
)

var (
	ErrDuplicateTask  = errors.New("identical task already enqueued")
	ErrUnknownTask    = errors.New("no handler registered for task")
	ErrQueueStopped   = errors.New("queue is shutting down")
	ErrHandlerPanic   = errors.New("task handler panicked")
	ErrInvalidPayload = errors.New("invalid task payload")
)

// Handler executes one delivery of a task. Returning nil completes the task,
// an error built with Retry asks for a later delivery and any other error
// fails the task for good.
type Handler func(ctx context.Context, payload []byte) error

// RetryError asks the queue to deliver the task again after Delay.
type RetryError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry in %s: %v", e.Delay, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

func Retry(err error, delay time.Duration) error {
	if err == nil {
		err = errors.New("retry requested")
	}
	return &RetryError{Err: err, Delay: delay}
}

// Options configures the queue. MaxRetries is the number of deliveries
// granted after the first one; zero disables retries.
type Options struct {
	Workers      int
	PollInterval time.Duration
	MaxRetries   int
	Retention    time.Duration
	Clock        clockwork.Clock
}

type enqueueOptions struct {
	delay      time.Duration
	maxRetries int
	uniqueTTL  time.Duration
}

type EnqueueOption func(*enqueueOptions)

func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = delay }
}

func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxRetries = maxRetries }
}

// WithUnique drops the task while an identical one (same name and arguments)
// is still pending or running. The lock expires after ttl at the latest.
func WithUnique(ttl time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.uniqueTTL = ttl }
}

type Service interface {
	Register(name string, handler Handler)
	Enqueue(ctx context.Context, name string, args any, opts ...EnqueueOption) (uint, error)
}

type Impl struct {
	repo       tasks.Repository
	clock      clockwork.Clock
	workers    int
	maxRetries int
	retention  time.Duration
	sem        *semaphore.Weighted
	unique     *cache.Cache
	stopped    atomic.Bool
	runCtx     context.Context
	cancelRun  context.CancelFunc

	mu       sync.RWMutex
	handlers map[string]Handler
}
