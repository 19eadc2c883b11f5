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

// ProjectRepository отвечает за проекты и их этапы.
type ProjectRepository struct {
	db sqlx.ExtContext
}

func NewProjectRepository(db sqlx.ExtContext) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO projects (id, commissioner_id, freelancer_id, title, invoicing_method,
			total_budget, currency, upfront_percent, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING version, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.CommissionerID,
		p.FreelancerID,
		p.Title,
		p.InvoicingMethod,
		p.TotalBudget,
		p.Currency,
		p.UpfrontPercent,
		p.Status,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("project repository: create %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return common.GetByID[models.Project](ctx, r.db, "projects", id, apperror.ErrProjectNotFound)
}

func (r *ProjectRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return common.LockByField[models.Project](ctx, r.db, "projects", "id", id, apperror.ErrProjectNotFound)
}

// Update сохраняет проект, если его версия не изменилась с момента чтения.
func (r *ProjectRepository) Update(ctx context.Context, p *models.Project) error {
	query := `
		UPDATE projects
		SET freelancer_id = $2, title = $3, status = $4, activated_at = $5, completed_at = $6,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $7
		RETURNING version, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.FreelancerID, p.Title, p.Status, p.ActivatedAt, p.CompletedAt, p.Version,
	).Scan(&p.Version, &p.UpdatedAt)
	if err != nil {
		return common.VersionConflict(err)
	}
	return nil
}

func (r *ProjectRepository) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO milestones (id, project_id, title, amount, position)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ProjectID, m.Title, m.Amount, m.Position)
	if err != nil {
		return fmt.Errorf("project repository: create milestone %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	return common.GetByID[models.Milestone](ctx, r.db, "milestones", id, apperror.ErrMilestoneNotFound)
}

func (r *ProjectRepository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if err := sqlx.SelectContext(ctx, r.db, &milestones,
		`SELECT * FROM milestones WHERE project_id = $1 ORDER BY position, id`, projectID); err != nil {
		return nil, fmt.Errorf("project repository: list milestones %w", err)
	}
	return milestones, nil
}
