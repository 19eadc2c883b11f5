package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/testutil"
)

type harness struct {
	store    *testutil.MemStore
	gw       *testutil.ScriptedGateway
	invoices *InvoiceService
	projects *ProjectService
	payments *PaymentService
	wallets  *WalletService

	commissioner Actor
	freelancer   Actor
}

func newHarness(t *testing.T, opts ...func(*PaymentConfig)) *harness {
	t.Helper()
	logger.Silence()

	store := testutil.NewMemStore()
	gw := testutil.NewScriptedGateway()
	policy := config.DefaultBillingPolicy()
	cfg := PaymentConfig{
		GatewayTimeout:   time.Second,
		IdempotencyTTL:   time.Hour,
		EligibilityCheck: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	invoices := NewInvoiceService(store, policy)
	commissioner := testutil.SeedUser(t, store, models.RoleCommissioner, "John Doe")
	freelancer := testutil.SeedUser(t, store, models.RoleFreelancer, "Jane Roe")

	return &harness{
		store:        store,
		gw:           gw,
		invoices:     invoices,
		projects:     NewProjectService(store, invoices),
		payments:     NewPaymentService(store, invoices, gw, ProjectEligibility{}, cfg),
		wallets:      NewWalletService(store, gw, policy, cfg),
		commissioner: Actor{UserID: commissioner.ID, Role: commissioner.Role},
		freelancer:   Actor{UserID: freelancer.ID, Role: freelancer.Role},
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// completionProject создаёт completion-проект с задачами и назначает фрилансера.
func (h *harness) completionProject(t *testing.T, budget string, taskCount int) (*AssignResult, []models.Task) {
	t.Helper()
	ctx := context.Background()

	view, err := h.projects.CreateProject(ctx, h.commissioner, CreateProjectInput{
		Title:           "Лендинг",
		InvoicingMethod: models.InvoicingCompletion,
		TotalBudget:     dec(budget),
	})
	require.NoError(t, err)

	tasks := make([]models.Task, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		task, err := h.projects.CreateTask(ctx, h.commissioner, view.Project.ID, CreateTaskInput{Title: "Задача"})
		require.NoError(t, err)
		tasks = append(tasks, *task)
	}

	assigned, err := h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, h.freelancer.UserID)
	require.NoError(t, err)
	return assigned, tasks
}

// milestoneProject создаёт проект с этапами (по одной задаче на этап) и назначает фрилансера.
func (h *harness) milestoneProject(t *testing.T, amounts ...string) (*models.Project, []models.Milestone, []models.Task) {
	t.Helper()
	ctx := context.Background()

	total := decimal.Zero
	inputs := make([]MilestoneInput, 0, len(amounts))
	for i, a := range amounts {
		total = total.Add(dec(a))
		inputs = append(inputs, MilestoneInput{Title: "Этап " + string(rune('A'+i)), Amount: dec(a)})
	}
	view, err := h.projects.CreateProject(ctx, h.commissioner, CreateProjectInput{
		Title:           "Мобильное приложение",
		InvoicingMethod: models.InvoicingMilestone,
		TotalBudget:     total,
		Milestones:      inputs,
	})
	require.NoError(t, err)

	tasks := make([]models.Task, 0, len(view.Milestones))
	for _, m := range view.Milestones {
		milestoneID := m.ID
		task, err := h.projects.CreateTask(ctx, h.commissioner, view.Project.ID, CreateTaskInput{
			Title:       "Работы по " + m.Title,
			MilestoneID: &milestoneID,
		})
		require.NoError(t, err)
		tasks = append(tasks, *task)
	}

	assigned, err := h.projects.AssignFreelancer(ctx, h.commissioner, view.Project.ID, h.freelancer.UserID)
	require.NoError(t, err)
	return assigned.Project, view.Milestones, tasks
}

// approve проводит задачу через проверку и возвращает результат принятия.
func (h *harness) approve(t *testing.T, taskID uuid.UUID) *ApproveResult {
	t.Helper()
	ctx := context.Background()
	_, err := h.projects.SubmitTask(ctx, h.freelancer, taskID)
	require.NoError(t, err)
	res, err := h.projects.ApproveTask(ctx, h.commissioner, taskID)
	require.NoError(t, err)
	return res
}

// readyMilestoneInvoice принимает задачу этапа, отправляет и запускает оплату счёта.
func (h *harness) readyMilestoneInvoice(t *testing.T, taskID uuid.UUID) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	res := h.approve(t, taskID)
	require.NotNil(t, res.Invoice)
	_, err := h.invoices.Send(ctx, h.freelancer, res.Invoice.InvoiceNumber)
	require.NoError(t, err)
	triggered, err := h.payments.Trigger(ctx, h.freelancer, res.Invoice.InvoiceNumber, "")
	require.NoError(t, err)
	return triggered.Invoice
}

func (h *harness) wallet(t *testing.T) models.Wallet {
	t.Helper()
	return testutil.Wallet(t, h.store, h.freelancer.UserID, "USD")
}
