package entities

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	// Terminal error, never retried.
	TaskFailed TaskStatus = "failed"
	// Retry budget exhausted.
	TaskDropped TaskStatus = "dropped"
)

type Task struct {
	ID         uint       `gorm:"primaryKey"`
	Name       string     `gorm:"type:varchar(64);index;not null"`
	Payload    string     `gorm:"type:text"`
	Status     TaskStatus `gorm:"type:varchar(16);index:idx_task_due;not null"`
	RunAt      time.Time  `gorm:"index:idx_task_due;not null"`
	Attempts   int        `gorm:"not null;default:0"`
	MaxRetries int        `gorm:"not null"`
	LastError  string     `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
