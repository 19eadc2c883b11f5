package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/testutil"
)

func TestCreateProject_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor Actor
		in    CreateProjectInput
		code  apperror.ErrorCode
	}{
		{
			name:  "freelancer cannot create",
			actor: h.freelancer,
			in:    CreateProjectInput{Title: "x", InvoicingMethod: models.InvoicingCompletion, TotalBudget: dec("100")},
			code:  apperror.ErrCodeForbiddenUserType,
		},
		{
			name:  "empty title",
			actor: h.commissioner,
			in:    CreateProjectInput{InvoicingMethod: models.InvoicingCompletion, TotalBudget: dec("100")},
			code:  apperror.ErrCodeInvalidInput,
		},
		{
			name:  "unknown method",
			actor: h.commissioner,
			in:    CreateProjectInput{Title: "x", InvoicingMethod: "hourly", TotalBudget: dec("100")},
			code:  apperror.ErrCodeValidation,
		},
		{
			name:  "zero budget",
			actor: h.commissioner,
			in:    CreateProjectInput{Title: "x", InvoicingMethod: models.InvoicingCompletion, TotalBudget: dec("0")},
			code:  apperror.ErrCodeInvalidInput,
		},
		{
			name:  "milestones do not sum to budget",
			actor: h.commissioner,
			in: CreateProjectInput{
				Title:           "x",
				InvoicingMethod: models.InvoicingMilestone,
				TotalBudget:     dec("1000"),
				Milestones:      []MilestoneInput{{Title: "a", Amount: dec("400")}, {Title: "b", Amount: dec("500")}},
			},
			code: apperror.ErrCodeInvalidInput,
		},
		{
			name:  "milestone project without milestones",
			actor: h.commissioner,
			in:    CreateProjectInput{Title: "x", InvoicingMethod: models.InvoicingMilestone, TotalBudget: dec("1000")},
			code:  apperror.ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.projects.CreateProject(ctx, tt.actor, tt.in)
			requireCode(t, err, tt.code)
		})
	}
}

func TestAssignFreelancer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, err := h.projects.CreateProject(ctx, h.commissioner, CreateProjectInput{
		Title:           "Сайт",
		InvoicingMethod: models.InvoicingCompletion,
		TotalBudget:     dec("2000"),
	})
	require.NoError(t, err)
	assert.True(t, dec("12").Equal(view.Project.UpfrontPercent))
	assert.Equal(t, models.ProjectStatusPending, view.Project.Status)

	other := testutil.SeedUser(t, h.store, models.RoleCommissioner, "Other Client")
	_, err = h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, other.ID)
	requireCode(t, err, apperror.ErrCodeInvalidInput)

	_, err = h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, uuid.New())
	assert.True(t, apperror.IsNotFound(err))

	res, err := h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, h.freelancer.UserID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusActive, res.Project.Status)
	require.NotNil(t, res.Upfront)
	assert.Equal(t, "JD-000001", res.Upfront.InvoiceNumber)

	_, err = h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, h.freelancer.UserID)
	requireCode(t, err, apperror.ErrCodeInvalidStatusTransition)

	var activated bool
	for _, e := range h.store.OutboxEvents() {
		if e.EventType == models.EventProjectActivated && e.RecipientID == h.freelancer.UserID {
			activated = true
		}
	}
	assert.True(t, activated)
}

func TestTaskReviewCycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, tasks := h.milestoneProject(t, "300", "700")
	taskID := tasks[0].ID

	submitted, err := h.projects.SubmitTask(ctx, h.freelancer, taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusReview, submitted.Status)
	assert.Equal(t, 0, submitted.Version)

	_, err = h.projects.SubmitTask(ctx, h.freelancer, taskID)
	requireCode(t, err, apperror.ErrCodeInvalidStatusTransition)

	rejected, err := h.projects.RejectTask(ctx, h.commissioner, taskID, "нет адаптивной вёрстки")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusInProgress, rejected.Status)

	resubmitted, err := h.projects.SubmitTask(ctx, h.freelancer, taskID)
	require.NoError(t, err)
	assert.Equal(t, 1, resubmitted.Version)

	_, err = h.projects.ApproveTask(ctx, h.freelancer, taskID)
	requireCode(t, err, apperror.ErrCodeForbiddenUserType)

	approved, err := h.projects.ApproveTask(ctx, h.commissioner, taskID)
	require.NoError(t, err)
	assert.True(t, approved.Task.Approved)
	assert.Equal(t, models.TaskStatusDone, approved.Task.Status)
	require.NotNil(t, approved.Invoice)
	assert.Equal(t, models.InvoiceTypeMilestone, approved.Invoice.InvoiceType)
	assert.Equal(t, models.InvoiceStatusDraft, approved.Invoice.Status)
	assert.True(t, dec("300").Equal(approved.Invoice.TotalAmount))

	_, err = h.projects.ApproveTask(ctx, h.commissioner, taskID)
	requireCode(t, err, apperror.ErrCodeInvalidStatusTransition)
}

func TestApproveTask_MilestoneWithPendingTasksHasNoInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project, milestones, tasks := h.milestoneProject(t, "1000")
	milestoneID := milestones[0].ID

	extra, err := h.projects.CreateTask(ctx, h.commissioner, project.ID, CreateTaskInput{Title: "Ещё", MilestoneID: &milestoneID})
	require.NoError(t, err)

	view, err := h.projects.GetProject(ctx, h.freelancer, project.ID)
	require.NoError(t, err)
	require.Len(t, view.Tasks, 2)

	res := h.approve(t, tasks[0].ID)
	assert.Nil(t, res.Invoice)

	_, err = h.invoices.CreateMilestoneInvoice(ctx, h.freelancer, project.ID, milestoneID)
	requireCode(t, err, apperror.ErrCodeTasksNotApproved)

	res = h.approve(t, extra.ID)
	require.NotNil(t, res.Invoice)

	again, err := h.invoices.CreateMilestoneInvoice(ctx, h.freelancer, project.ID, milestoneID)
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.InvoiceNumber, again.InvoiceNumber)
}

func TestCreateTask_Rules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	project, _, _ := h.milestoneProject(t, "1000")

	_, err := h.projects.CreateTask(ctx, h.commissioner, project.ID, CreateTaskInput{Title: "Без этапа"})
	requireCode(t, err, apperror.ErrCodeInvalidInput)

	foreign := uuid.New()
	_, err = h.projects.CreateTask(ctx, h.commissioner, project.ID, CreateTaskInput{Title: "Чужой этап", MilestoneID: &foreign})
	assert.True(t, apperror.IsNotFound(err))

	stranger := Actor{UserID: uuid.New(), Role: models.RoleCommissioner}
	_, err = h.projects.GetProject(ctx, stranger, project.ID)
	requireCode(t, err, apperror.ErrCodeForbidden)
}

func TestApproveTask_CompletionProjectSignalsFinalPayment(t *testing.T) {
	h := newHarness(t)
	assigned, tasks := h.completionProject(t, "2000", 2)
	for _, task := range tasks {
		h.approve(t, task.ID)
	}

	var ready int
	for _, e := range h.store.OutboxEvents() {
		if e.EventType == models.EventProjectReadyForFinal {
			ready++
			assert.Equal(t, assigned.Project.CommissionerID, e.RecipientID)
		}
	}
	assert.Equal(t, 1, ready)
}
