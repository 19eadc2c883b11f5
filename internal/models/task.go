package models

import (
	"time"

	"github.com/google/uuid"
)

// Статусы задачи.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusReview     = "review"
	TaskStatusDone       = "done"
)

// Task принадлежит ровно одному проекту и может ссылаться на этап.
type Task struct {
	ID          uuid.UUID  `db:"id" json:"taskId"`
	ProjectID   uuid.UUID  `db:"project_id" json:"projectId"`
	MilestoneID *uuid.UUID `db:"milestone_id" json:"milestoneId,omitempty"`
	Title       string     `db:"title" json:"title"`
	Status      string     `db:"status" json:"status"`
	Approved    bool       `db:"approved" json:"approved"`
	Completed   bool       `db:"completed" json:"completed"`
	Version     int        `db:"version" json:"version"`
	SubmittedAt *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}
