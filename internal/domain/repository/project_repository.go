package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProjectRepository. Методы *ForUpdate блокируют строку до конца транзакции.
// Update проверяет version и увеличивает его, при расхождении - CONCURRENT_MODIFICATION.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error

	CreateMilestone(ctx context.Context, milestone *models.Milestone) error
	GetMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error)
}
