package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

type TaskRepository struct {
	db sqlx.ExtContext
}

func NewTaskRepository(db sqlx.ExtContext) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO tasks (id, project_id, milestone_id, title, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, t.ID, t.ProjectID, t.MilestoneID, t.Title, t.Status).
		Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("task repository: create %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return common.GetByID[models.Task](ctx, r.db, "tasks", id, apperror.ErrTaskNotFound)
}

func (r *TaskRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return common.LockByField[models.Task](ctx, r.db, "tasks", "id", id, apperror.ErrTaskNotFound)
}

// Update сохраняет задачу. Строка должна быть заблокирована через GetForUpdate:
// поле version у задачи - счётчик повторных отправок, а не версия записи.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE tasks
		SET status = $2, approved = $3, completed = $4, version = $5,
			submitted_at = $6, approved_at = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, t.ID, t.Status, t.Approved, t.Completed, t.Version, t.SubmittedAt, t.ApprovedAt).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("task repository: update %w", err)
	}
	return nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	var tasks []models.Task
	if err := sqlx.SelectContext(ctx, r.db, &tasks,
		`SELECT * FROM tasks WHERE project_id = $1 ORDER BY created_at, id`, projectID); err != nil {
		return nil, fmt.Errorf("task repository: list by project %w", err)
	}
	return tasks, nil
}
