package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/domain/billing"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// ProjectService ведёт проекты и задачи. Принятие работы порождает счета через InvoiceService.
type ProjectService struct {
	store    repository.Store
	invoices *InvoiceService
	now      func() time.Time
}

func NewProjectService(store repository.Store, invoices *InvoiceService) *ProjectService {
	return &ProjectService{
		store:    store,
		invoices: invoices,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type MilestoneInput struct {
	Title  string
	Amount decimal.Decimal
}

type CreateProjectInput struct {
	Title           string
	InvoicingMethod string
	TotalBudget     decimal.Decimal
	Currency        string
	Milestones      []MilestoneInput
}

type CreateTaskInput struct {
	Title       string
	MilestoneID *uuid.UUID
}

// ProjectView - проект со всем, что нужно для экрана оплаты.
type ProjectView struct {
	Project    *models.Project    `json:"project"`
	Milestones []models.Milestone `json:"milestones"`
	Tasks      []models.Task      `json:"tasks"`
	Invoices   []models.Invoice   `json:"invoices"`
	Progress   billing.Progress   `json:"progress"`
}

type AssignResult struct {
	Project *models.Project `json:"project"`
	Upfront *models.Invoice `json:"upfrontInvoice,omitempty"`
}

type ApproveResult struct {
	Task    *models.Task    `json:"task"`
	Invoice *models.Invoice `json:"invoice,omitempty"`
}

// completeProject переводит проект в completed и уведомляет обе стороны. Повторный вызов ничего не делает.
func completeProject(ctx context.Context, tx repository.Repositories, p *models.Project, actorID uuid.UUID, now time.Time) error {
	if p.Status == models.ProjectStatusCompleted {
		return nil
	}
	from := p.Status
	if !valueobject.ProjectStatus(from).CanTransitionTo(valueobject.ProjectStatusCompleted) {
		return apperror.ErrInvalidStatusTransition.WithDetails("проект: " + from + " -> " + models.ProjectStatusCompleted)
	}
	p.Status = models.ProjectStatusCompleted
	p.CompletedAt = &now
	if err := tx.Projects().Update(ctx, p); err != nil {
		return err
	}
	if err := writeAudit(ctx, tx, auditRecord{
		entityType: models.AuditEntityProject,
		entityID:   p.ID.String(),
		action:     "completed",
		actor:      actorID,
		from:       from,
		to:         p.Status,
	}); err != nil {
		return err
	}
	event := map[string]string{"projectId": p.ID.String(), "title": p.Title}
	if err := enqueue(ctx, tx, models.EventProjectCompleted, p.CommissionerID, event); err != nil {
		return err
	}
	if p.FreelancerID != nil {
		return enqueue(ctx, tx, models.EventProjectCompleted, *p.FreelancerID, event)
	}
	return nil
}

func (s *ProjectService) CreateProject(ctx context.Context, actor Actor, in CreateProjectInput) (*ProjectView, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.InvalidInput("название проекта обязательно")
	}
	method, err := valueobject.NewInvoicingMethod(in.InvoicingMethod)
	if err != nil {
		return nil, err
	}
	if !in.TotalBudget.IsPositive() {
		return nil, apperror.InvalidInput("бюджет проекта должен быть больше нуля")
	}
	if in.Currency == "" {
		in.Currency = s.invoices.policy.DefaultCurrency
	}
	in.Currency = strings.ToUpper(in.Currency)

	policy := s.invoices.policy
	project := &models.Project{
		CommissionerID:  actor.UserID,
		Title:           in.Title,
		InvoicingMethod: string(method),
		TotalBudget:     models.Cents(in.TotalBudget),
		Currency:        in.Currency,
		UpfrontPercent:  decimal.Zero,
		Status:          models.ProjectStatusPending,
	}

	switch method {
	case valueobject.InvoicingMilestone:
		if len(in.Milestones) == 0 {
			return nil, apperror.InvalidInput("проект с оплатой по этапам должен содержать этапы")
		}
		sum := decimal.Zero
		for _, m := range in.Milestones {
			if strings.TrimSpace(m.Title) == "" || !m.Amount.IsPositive() {
				return nil, apperror.InvalidInput("у каждого этапа должны быть название и положительная ставка")
			}
			sum = sum.Add(models.Cents(m.Amount))
		}
		if sum.Sub(project.TotalBudget).Abs().GreaterThan(s.invoices.epsilon()) {
			return nil, apperror.InvalidInput("сумма ставок этапов должна совпадать с бюджетом проекта")
		}
	case valueobject.InvoicingCompletion:
		if len(in.Milestones) > 0 {
			return nil, apperror.InvalidInput("проект с оплатой по завершении не содержит этапов")
		}
		project.UpfrontPercent = policy.UpfrontPercent
	}

	view := &ProjectView{Project: project, Tasks: []models.Task{}, Invoices: []models.Invoice{}}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		if err := tx.Projects().Create(ctx, project); err != nil {
			return err
		}
		for i, m := range in.Milestones {
			milestone := models.Milestone{
				ProjectID: project.ID,
				Title:     strings.TrimSpace(m.Title),
				Amount:    models.Cents(m.Amount),
				Position:  i + 1,
			}
			if err := tx.Projects().CreateMilestone(ctx, &milestone); err != nil {
				return err
			}
			view.Milestones = append(view.Milestones, milestone)
		}
		return writeAudit(ctx, tx, auditRecord{
			entityType: models.AuditEntityProject,
			entityID:   project.ID.String(),
			action:     "created",
			actor:      actor.UserID,
			to:         project.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	if view.Milestones == nil {
		view.Milestones = []models.Milestone{}
	}
	return view, nil
}

// AssignFreelancer назначает фрилансера и активирует проект.
// Для completion-проекта сразу выставляется счёт предоплаты.
func (s *ProjectService) AssignFreelancer(ctx context.Context, actor Actor, projectID, freelancerID uuid.UUID) (*AssignResult, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	var out AssignResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		from := p.Status
		if !valueobject.ProjectStatus(from).CanTransitionTo(valueobject.ProjectStatusActive) {
			return apperror.ErrInvalidStatusTransition.WithDetails("проект: " + from + " -> " + models.ProjectStatusActive)
		}
		freelancer, err := tx.Users().GetByID(ctx, freelancerID)
		if err != nil {
			return err
		}
		if freelancer.Role != models.RoleFreelancer {
			return apperror.InvalidInput("назначить можно только фрилансера")
		}

		now := s.now()
		p.FreelancerID = &freelancer.ID
		p.Status = models.ProjectStatusActive
		p.ActivatedAt = &now
		if err := tx.Projects().Update(ctx, p); err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, auditRecord{
			entityType: models.AuditEntityProject,
			entityID:   p.ID.String(),
			action:     "freelancer_assigned",
			actor:      actor.UserID,
			from:       from,
			to:         p.Status,
			details:    map[string]string{"freelancerId": freelancer.ID.String()},
		}); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventProjectActivated, freelancer.ID,
			map[string]string{"projectId": p.ID.String(), "title": p.Title}); err != nil {
			return err
		}
		out.Project = p

		if p.IsCompletion() {
			upfront, _, err := s.invoices.upfrontInvoice(ctx, tx, p)
			if err != nil {
				return err
			}
			out.Upfront = upfront
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProjectService) CreateTask(ctx context.Context, actor Actor, projectID uuid.UUID, in CreateTaskInput) (*models.Task, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.InvalidInput("название задачи обязательно")
	}
	var task *models.Task
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		if p.Status != models.ProjectStatusPending && p.Status != models.ProjectStatusActive {
			return apperror.ErrInvalidStatusTransition.WithDetails("нельзя добавить задачу в проект со статусом " + p.Status)
		}
		switch {
		case p.IsCompletion() && in.MilestoneID != nil:
			return apperror.InvalidInput("задачи completion-проекта не привязываются к этапам")
		case !p.IsCompletion() && in.MilestoneID == nil:
			return apperror.InvalidInput("укажите этап задачи")
		case in.MilestoneID != nil:
			m, err := tx.Projects().GetMilestone(ctx, *in.MilestoneID)
			if err != nil {
				return err
			}
			if m.ProjectID != p.ID {
				return apperror.ErrMilestoneNotFound
			}
		}

		task = &models.Task{
			ProjectID:   p.ID,
			MilestoneID: in.MilestoneID,
			Title:       in.Title,
			Status:      models.TaskStatusTodo,
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return writeAudit(ctx, tx, auditRecord{
			entityType: models.AuditEntityTask,
			entityID:   task.ID.String(),
			action:     "created",
			actor:      actor.UserID,
			to:         task.Status,
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// lockTask блокирует проект и задачу в этом порядке.
func lockTask(ctx context.Context, tx repository.Repositories, taskID uuid.UUID) (*models.Project, *models.Task, error) {
	peek, err := tx.Tasks().GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.Projects().GetForUpdate(ctx, peek.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	task, err := tx.Tasks().GetForUpdate(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	return p, task, nil
}

func (s *ProjectService) moveTask(ctx context.Context, tx repository.Repositories, actor Actor, task *models.Task, to valueobject.TaskStatus, action string, details any) error {
	from := task.Status
	if !valueobject.TaskStatus(from).CanTransitionTo(to) {
		return apperror.ErrInvalidStatusTransition.WithDetails("задача: " + from + " -> " + string(to))
	}
	task.Status = string(to)
	if err := tx.Tasks().Update(ctx, task); err != nil {
		return err
	}
	return writeAudit(ctx, tx, auditRecord{
		entityType: models.AuditEntityTask,
		entityID:   task.ID.String(),
		action:     action,
		actor:      actor.UserID,
		from:       from,
		to:         task.Status,
		details:    details,
	})
}

// SubmitTask отправляет задачу на проверку. Повторная отправка после возврата увеличивает version.
func (s *ProjectService) SubmitTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*models.Task, error) {
	if err := requireRole(actor, models.RoleFreelancer); err != nil {
		return nil, err
	}
	var out *models.Task
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, task, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if !p.HasFreelancer(actor.UserID) {
			return apperror.ErrForbidden
		}
		if p.Status != models.ProjectStatusActive {
			return apperror.ErrInvalidStatusTransition.WithDetails("проект не активен: " + p.Status)
		}
		now := s.now()
		if task.SubmittedAt != nil {
			task.Version++
		}
		task.SubmittedAt = &now
		if err := s.moveTask(ctx, tx, actor, task, valueobject.TaskStatusReview, "submitted", nil); err != nil {
			return err
		}
		out = task
		return enqueue(ctx, tx, models.EventTaskSubmitted, p.CommissionerID,
			map[string]any{"taskId": task.ID, "projectId": p.ID, "title": task.Title, "version": task.Version})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveTask принимает задачу. Если это последняя задача этапа, выставляется счёт за этап;
// если последняя задача completion-проекта, заказчик получает уведомление о финальной оплате.
func (s *ProjectService) ApproveTask(ctx context.Context, actor Actor, taskID uuid.UUID) (*ApproveResult, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	var out ApproveResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, task, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		now := s.now()
		task.Approved = true
		task.Completed = true
		task.ApprovedAt = &now
		if err := s.moveTask(ctx, tx, actor, task, valueobject.TaskStatusDone, "approved", nil); err != nil {
			return err
		}
		out.Task = task
		if p.FreelancerID != nil {
			if err := enqueue(ctx, tx, models.EventTaskApproved, *p.FreelancerID,
				map[string]any{"taskId": task.ID, "projectId": p.ID, "title": task.Title}); err != nil {
				return err
			}
		}

		tasks, err := tx.Tasks().ListByProject(ctx, p.ID)
		if err != nil {
			return err
		}

		if !p.IsCompletion() && task.MilestoneID != nil {
			var scoped []models.Task
			for _, t := range tasks {
				if t.MilestoneID != nil && *t.MilestoneID == *task.MilestoneID {
					scoped = append(scoped, t)
				}
			}
			if !billing.ProjectProgress(scoped).AllApproved {
				return nil
			}
			m, err := tx.Projects().GetMilestone(ctx, *task.MilestoneID)
			if err != nil {
				return err
			}
			out.Invoice, _, err = s.invoices.createMilestoneInvoice(ctx, tx, p, m)
			return err
		}

		if p.IsCompletion() && billing.ProjectProgress(tasks).AllApproved {
			return enqueue(ctx, tx, models.EventProjectReadyForFinal, p.CommissionerID,
				map[string]string{"projectId": p.ID.String(), "title": p.Title})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectTask возвращает задачу фрилансеру на доработку.
func (s *ProjectService) RejectTask(ctx context.Context, actor Actor, taskID uuid.UUID, reason string) (*models.Task, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	var out *models.Task
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, task, err := lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		if err := s.moveTask(ctx, tx, actor, task, valueobject.TaskStatusInProgress, "rejected",
			map[string]string{"reason": reason}); err != nil {
			return err
		}
		out = task
		if p.FreelancerID == nil {
			return nil
		}
		return enqueue(ctx, tx, models.EventTaskRejected, *p.FreelancerID,
			map[string]any{"taskId": task.ID, "projectId": p.ID, "title": task.Title, "reason": reason})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ProjectService) GetProject(ctx context.Context, actor Actor, projectID uuid.UUID) (*ProjectView, error) {
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canViewProject(actor, p) {
		return nil, apperror.ErrForbidden
	}
	milestones, err := s.store.Projects().ListMilestones(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.Tasks().ListByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.Invoices().ListByProject(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	view := &ProjectView{
		Project:    p,
		Milestones: milestones,
		Tasks:      tasks,
		Invoices:   invoices,
		Progress:   billing.ProjectProgress(tasks),
	}
	if view.Milestones == nil {
		view.Milestones = []models.Milestone{}
	}
	if view.Tasks == nil {
		view.Tasks = []models.Task{}
	}
	if view.Invoices == nil {
		view.Invoices = []models.Invoice{}
	}
	return view, nil
}
