package tasks

import (
	"context"
	"crypto-ingestor/models/entities"
	"crypto-ingestor/utils/databases"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func New(db databases.SqlConnection) *Impl {
	return &Impl{db: db}
}

func (repo *Impl) Create(ctx context.Context, task *entities.Task) error {
	task.RunAt = task.RunAt.UTC()
	if err := repo.db.GetDB().WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.Name, err)
	}

	return nil
}

func (repo *Impl) Get(ctx context.Context, id uint) (entities.Task, error) {
	var task entities.Task
	err := repo.db.GetDB().WithContext(ctx).First(&task, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return task, fmt.Errorf("failed to get task %d: %w", id, err)
	}

	return task, nil
}

// ClaimDue marks at most limit pending tasks due at now as running and
// returns them with their attempt counter already incremented.
func (repo *Impl) ClaimDue(ctx context.Context, now time.Time, limit int) ([]entities.Task, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []entities.Task
	err := repo.db.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("status = ? AND run_at <= ?", entities.TaskPending, now.UTC()).
			Order("run_at, id").
			Limit(limit).
			Find(&claimed).Error
		if errFind != nil || len(claimed) == 0 {
			return errFind
		}

		ids := make([]uint, 0, len(claimed))
		for _, task := range claimed {
			ids = append(ids, task.ID)
		}

		return tx.Model(&entities.Task{}).Where("id IN ?", ids).Updates(map[string]any{
			"status":   entities.TaskRunning,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim due tasks: %w", err)
	}

	for i := range claimed {
		claimed[i].Status = entities.TaskRunning
		claimed[i].Attempts++
	}

	return claimed, nil
}

func (repo *Impl) Complete(ctx context.Context, id uint) error {
	return repo.update(ctx, id, map[string]any{
		"status":     entities.TaskDone,
		"last_error": "",
	})
}

func (repo *Impl) Reschedule(ctx context.Context, id uint, runAt time.Time, lastError string) error {
	return repo.update(ctx, id, map[string]any{
		"status":     entities.TaskPending,
		"run_at":     runAt.UTC(),
		"last_error": lastError,
	})
}

func (repo *Impl) Finish(ctx context.Context, id uint, status entities.TaskStatus, lastError string) error {
	return repo.update(ctx, id, map[string]any{
		"status":     status,
		"last_error": lastError,
	})
}

func (repo *Impl) update(ctx context.Context, id uint, values map[string]any) error {
	result := repo.db.GetDB().WithContext(ctx).Model(&entities.Task{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update task %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return nil
}

// ResetRunning puts back in the queue tasks whose worker died before
// reporting an outcome.
func (repo *Impl) ResetRunning(ctx context.Context) (int64, error) {
	result := repo.db.GetDB().WithContext(ctx).
		Model(&entities.Task{}).
		Where("status = ?", entities.TaskRunning).
		Update("status", entities.TaskPending)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset running tasks: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (repo *Impl) PurgeDone(ctx context.Context, before time.Time) (int64, error) {
	result := repo.db.GetDB().WithContext(ctx).
		Where("status = ? AND updated_at < ?", entities.TaskDone, before.UTC()).
		Delete(&entities.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge done tasks: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (repo *Impl) CountByStatus(ctx context.Context) (map[entities.TaskStatus]int64, error) {
	var rows []struct {
		Status entities.TaskStatus
		Total  int64
	}
	err := repo.db.GetDB().WithContext(ctx).
		Model(&entities.Task{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	counts := make(map[entities.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}

	return counts, nil
}
