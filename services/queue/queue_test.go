package queue

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/repositories/tasks"
	"crypto-ingestor/utils/databases"
	"crypto-ingestor/utils/databases/databasestest"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var errUpstream = errors.New("upstream exploded")

type QueueTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock clockwork.FakeClock
	db    databases.SqlConnection
	repo  *tasks.Impl
	queue *Impl
}

func TestQueueTestSuite(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (s *QueueTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.db = databasestest.New(s.T())
	s.repo = tasks.New(s.db)

	scheduler, err := gocron.NewScheduler()
	s.Require().NoError(err)

	s.queue, err = New(scheduler, s.repo, Options{Workers: 2, MaxRetries: 3, Clock: s.clock})
	s.Require().NoError(err)
}

func (s *QueueTestSuite) task(id uint) entities.Task {
	task, err := s.repo.Get(s.ctx, id)
	s.Require().NoError(err)
	return task
}

func (s *QueueTestSuite) TestSuccessfulTaskIsDone() {
	type args struct {
		Coin string `json:"coin"`
	}
	var received args
	s.queue.Register("echo", func(ctx context.Context, payload []byte) error {
		return json.Unmarshal(payload, &received)
	})

	id, err := s.queue.Enqueue(s.ctx, "echo", args{Coin: "bitcoin"})
	s.Require().NoError(err)

	delivered, err := s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, delivered)
	s.Equal("bitcoin", received.Coin)
	s.Equal(entities.TaskDone, s.task(id).Status)
}

func (s *QueueTestSuite) TestRetryCeiling() {
	var calls atomic.Int32
	s.queue.Register("flaky", func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return Retry(errUpstream, 0)
	})

	id, err := s.queue.Enqueue(s.ctx, "flaky", nil)
	s.Require().NoError(err)

	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)

	s.Equal(int32(4), calls.Load())
	task := s.task(id)
	s.Equal(entities.TaskDropped, task.Status)
	s.Equal(4, task.Attempts)
	s.Equal(errUpstream.Error(), task.LastError)
}

func (s *QueueTestSuite) TestRetryWaitsForCountdown() {
	var calls atomic.Int32
	s.queue.Register("flaky", func(ctx context.Context, payload []byte) error {
		if calls.Add(1) == 1 {
			return Retry(errUpstream, 10*time.Second)
		}
		return nil
	})

	id, err := s.queue.Enqueue(s.ctx, "flaky", nil)
	s.Require().NoError(err)

	delivered, err := s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, delivered)
	s.Equal(entities.TaskPending, s.task(id).Status)

	s.clock.Advance(9 * time.Second)
	delivered, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(delivered)

	s.clock.Advance(time.Second)
	delivered, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, delivered)
	s.Equal(entities.TaskDone, s.task(id).Status)
	s.Equal(int32(2), calls.Load())
}

func (s *QueueTestSuite) TestTerminalErrorIsNotRetried() {
	var calls atomic.Int32
	s.queue.Register("broken", func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return errUpstream
	})

	id, err := s.queue.Enqueue(s.ctx, "broken", nil)
	s.Require().NoError(err)

	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)

	s.Equal(int32(1), calls.Load())
	s.Equal(entities.TaskFailed, s.task(id).Status)
}

func (s *QueueTestSuite) TestPanicFailsTask() {
	s.queue.Register("panics", func(ctx context.Context, payload []byte) error {
		panic("boom")
	})

	id, err := s.queue.Enqueue(s.ctx, "panics", nil)
	s.Require().NoError(err)

	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)

	task := s.task(id)
	s.Equal(entities.TaskFailed, task.Status)
	s.Contains(task.LastError, "boom")
}

func (s *QueueTestSuite) TestUnknownTaskFails() {
	id, err := s.queue.Enqueue(s.ctx, "nobody", nil)
	s.Require().NoError(err)

	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(entities.TaskFailed, s.task(id).Status)
}

func (s *QueueTestSuite) TestDelayedEnqueue() {
	s.queue.Register("later", func(ctx context.Context, payload []byte) error { return nil })

	_, err := s.queue.Enqueue(s.ctx, "later", nil, WithDelay(time.Minute))
	s.Require().NoError(err)

	delivered, err := s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Zero(delivered)

	s.clock.Advance(time.Minute)
	delivered, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, delivered)
}

func (s *QueueTestSuite) TestMaxRetriesOverride() {
	var calls atomic.Int32
	s.queue.Register("flaky", func(ctx context.Context, payload []byte) error {
		calls.Add(1)
		return Retry(errUpstream, 0)
	})

	_, err := s.queue.Enqueue(s.ctx, "flaky", nil, WithMaxRetries(0))
	s.Require().NoError(err)

	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(int32(1), calls.Load())
}

func (s *QueueTestSuite) TestUniqueTasks() {
	_, err := s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "bitcoin"}, WithUnique(time.Minute))
	s.Require().NoError(err)

	_, err = s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "bitcoin"}, WithUnique(time.Minute))
	s.ErrorIs(err, ErrDuplicateTask)

	_, err = s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "ethereum"}, WithUnique(time.Minute))
	s.NoError(err)

	_, err = s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "bitcoin"})
	s.NoError(err)
}

func (s *QueueTestSuite) TestUniqueTaskReleasedOnceFinished() {
	outcomes := map[string]error{
		"done":    nil,
		"failed":  errUpstream,
		"dropped": Retry(errUpstream, time.Second),
	}
	for name, outcome := range outcomes {
		s.queue.Register(name, func(ctx context.Context, payload []byte) error {
			return outcome
		})

		_, err := s.queue.Enqueue(s.ctx, name, "bitcoin", WithUnique(time.Minute), WithMaxRetries(0))
		s.Require().NoError(err)
		_, err = s.queue.Enqueue(s.ctx, name, "bitcoin", WithUnique(time.Minute))
		s.Require().ErrorIs(err, ErrDuplicateTask, name)

		_, err = s.queue.RunPending(s.ctx)
		s.Require().NoError(err)

		_, err = s.queue.Enqueue(s.ctx, name, "bitcoin", WithUnique(time.Minute), WithDelay(time.Hour))
		s.NoError(err, name)
	}

	stats, err := s.queue.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats[entities.TaskDone])
	s.Equal(int64(1), stats[entities.TaskFailed])
	s.Equal(int64(1), stats[entities.TaskDropped])
	s.Equal(int64(3), stats[entities.TaskPending])
}

func (s *QueueTestSuite) TestUniqueTaskHeldWhileRetrying() {
	s.queue.Register("flaky", func(ctx context.Context, payload []byte) error {
		return Retry(errUpstream, time.Second)
	})

	_, err := s.queue.Enqueue(s.ctx, "flaky", "bitcoin", WithUnique(time.Minute))
	s.Require().NoError(err)
	_, err = s.queue.RunPending(s.ctx)
	s.Require().NoError(err)

	_, err = s.queue.Enqueue(s.ctx, "flaky", "bitcoin", WithUnique(time.Minute))
	s.ErrorIs(err, ErrDuplicateTask)
}

func (s *QueueTestSuite) TestUniqueTaskReleasedWhenNotPersisted() {
	db := s.db.GetDB()
	s.Require().NoError(db.Exec(
		"CREATE TRIGGER reject_tasks BEFORE INSERT ON tasks BEGIN SELECT RAISE(ABORT, 'rejected'); END").Error)

	_, err := s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "bitcoin"}, WithUnique(time.Minute))
	s.Require().Error(err)
	s.NotErrorIs(err, ErrDuplicateTask)

	s.Require().NoError(db.Exec("DROP TRIGGER reject_tasks").Error)

	id, err := s.queue.Enqueue(s.ctx, "history", map[string]string{"coin": "bitcoin"}, WithUnique(time.Minute))
	s.Require().NoError(err)
	s.Equal(entities.TaskPending, s.task(id).Status)
}

func (s *QueueTestSuite) TestHandlersCanEnqueue() {
	var chained atomic.Int32
	s.queue.Register("parent", func(ctx context.Context, payload []byte) error {
		_, err := s.queue.Enqueue(ctx, "child", nil)
		return err
	})
	s.queue.Register("child", func(ctx context.Context, payload []byte) error {
		chained.Add(1)
		return nil
	})

	_, err := s.queue.Enqueue(s.ctx, "parent", nil)
	s.Require().NoError(err)

	delivered, err := s.queue.RunPending(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, delivered)
	s.Equal(int32(1), chained.Load())
}

func (s *QueueTestSuite) TestStartRequeuesInterruptedTasks() {
	id, err := s.queue.Enqueue(s.ctx, "interrupted", nil)
	s.Require().NoError(err)
	_, err = s.repo.ClaimDue(s.ctx, s.clock.Now(), 1)
	s.Require().NoError(err)

	s.Require().NoError(s.queue.Start(s.ctx))
	s.Equal(entities.TaskPending, s.task(id).Status)
}

func (s *QueueTestSuite) TestPollRunsTasksOnWorkers() {
	done := make(chan struct{}, 3)
	s.queue.Register("work", func(ctx context.Context, payload []byte) error {
		done <- struct{}{}
		return nil
	})
	for i := 0; i < 3; i++ {
		_, err := s.queue.Enqueue(s.ctx, "work", i)
		s.Require().NoError(err)
	}

	// Two workers: a single poll claims two tasks, the next one the third.
	s.queue.poll()
	s.Require().NoError(s.queue.Shutdown(s.ctx))
	s.Len(done, 2)

	stats, err := s.queue.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), stats[entities.TaskDone])
	s.Equal(int64(1), stats[entities.TaskPending])

	_, err = s.queue.Enqueue(s.ctx, "work", 4)
	s.ErrorIs(err, ErrQueueStopped)
}

func TestRetryWrapsCause(t *testing.T) {
	err := Retry(errUpstream, time.Second)

	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, time.Second, retryErr.Delay)
	assert.ErrorIs(t, err, errUpstream)
	assert.Error(t, Retry(nil, time.Second))
}
