package tasks

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("task not found")
)

type Repository interface {
	Create(ctx context.Context, task *entities.Task) error
	Get(ctx context.Context, id uint) (entities.Task, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]entities.Task, error)
	Complete(ctx context.Context, id uint) error
	Reschedule(ctx context.Context, id uint, runAt time.Time, lastError string) error
	Finish(ctx context.Context, id uint, status entities.TaskStatus, lastError string) error
	ResetRunning(ctx context.Context) (int64, error)
	PurgeDone(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[entities.TaskStatus]int64, error)
}

type Impl struct {
	db databases.SqlConnection
}
