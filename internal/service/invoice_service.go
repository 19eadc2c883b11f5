package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/domain/billing"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

var hundred = decimal.NewFromInt(100)

// InvoiceService выставляет счета и управляет их жизненным циклом до оплаты.
type InvoiceService struct {
	store  repository.Store
	policy config.BillingPolicy
	now    func() time.Time
}

func NewInvoiceService(store repository.Store, policy config.BillingPolicy) *InvoiceService {
	return &InvoiceService{
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListInvoicesInput - фильтры списка счетов.
type ListInvoicesInput struct {
	ProjectID   *uuid.UUID
	Status      string
	InvoiceType string
	Limit       int
	Offset      int
}

// invoicePrefix строит префикс номера из инициалов заказчика: «Иван Петров» → «ИП».
func invoicePrefix(displayName string) string {
	var initials []rune
	for _, word := range strings.Fields(displayName) {
		for _, r := range word {
			if unicode.IsLetter(r) {
				initials = append(initials, unicode.ToUpper(r))
				break
			}
		}
	}
	switch {
	case len(initials) >= 2:
		return string(initials[:2])
	case len(initials) == 1:
		letters := []rune{}
		for _, r := range strings.TrimSpace(displayName) {
			if unicode.IsLetter(r) {
				letters = append(letters, unicode.ToUpper(r))
			}
			if len(letters) == 2 {
				break
			}
		}
		return string(letters)
	}
	return "INV"
}

func (s *InvoiceService) paymentDetails(amount decimal.Decimal) models.PaymentDetails {
	fee := models.Cents(amount.Mul(s.policy.PlatformFeePercent).Div(hundred))
	return models.PaymentDetails{
		PlatformFee:      fee,
		FreelancerAmount: amount.Sub(fee),
	}
}

func (s *InvoiceService) epsilon() decimal.Decimal {
	if s.policy.RoundingEpsilon.IsPositive() {
		return s.policy.RoundingEpsilon
	}
	return billing.DefaultEpsilon
}

func (s *InvoiceService) draft(p *models.Project, invoiceType, scope, status string, amount decimal.Decimal, items []models.LineItem) *models.Invoice {
	inv := &models.Invoice{
		ProjectID:      p.ID,
		FreelancerID:   *p.FreelancerID,
		CommissionerID: p.CommissionerID,
		InvoiceType:    invoiceType,
		ScopeKey:       scope,
		TotalAmount:    models.Cents(amount),
		Currency:       p.Currency,
		Status:         status,
		PaymentDetails: s.paymentDetails(models.Cents(amount)),
		Milestones:     items,
	}
	if status != models.InvoiceStatusDraft {
		now := s.now()
		inv.SentAt = &now
	}
	return inv
}

// issue сохраняет новый счёт. Если счёт на этот объём работ уже выставлен, возвращает его и created == false.
func (s *InvoiceService) issue(ctx context.Context, tx repository.Repositories, inv *models.Invoice) (*models.Invoice, bool, error) {
	existing, err := tx.Invoices().FindByScope(ctx, inv.ProjectID, inv.InvoiceType, inv.ScopeKey)
	if err == nil {
		return existing, false, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}

	prefix := "INV"
	if commissioner, err := tx.Users().GetByID(ctx, inv.CommissionerID); err == nil {
		prefix = invoicePrefix(commissioner.DisplayName)
	} else if !apperror.IsNotFound(err) {
		return nil, false, err
	}
	number, err := tx.Invoices().NextNumber(ctx, prefix)
	if err != nil {
		return nil, false, err
	}
	inv.InvoiceNumber = number

	if err := tx.Invoices().Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			existing, err := tx.Invoices().FindByScope(ctx, inv.ProjectID, inv.InvoiceType, inv.ScopeKey)
			return existing, false, err
		}
		return nil, false, err
	}

	if err := writeAudit(ctx, tx, auditRecord{
		entityType: models.AuditEntityInvoice,
		entityID:   inv.InvoiceNumber,
		action:     "created",
		to:         inv.Status,
		details:    map[string]string{"invoiceType": inv.InvoiceType, "amount": inv.TotalAmount.StringFixed(2)},
	}); err != nil {
		return nil, false, err
	}
	if err := enqueue(ctx, tx, models.EventInvoiceCreated, inv.FreelancerID, newInvoiceEvent(inv)); err != nil {
		return nil, false, err
	}
	if inv.Status == models.InvoiceStatusSent {
		if err := enqueue(ctx, tx, models.EventInvoiceSent, inv.CommissionerID, newInvoiceEvent(inv)); err != nil {
			return nil, false, err
		}
	}
	return inv, true, nil
}

func requireFreelancer(p *models.Project) error {
	if p.FreelancerID == nil {
		return apperror.ErrPaymentNotEligible.WithDetails("на проект не назначен фрилансер")
	}
	return nil
}

func (s *InvoiceService) snapshot(ctx context.Context, tx repository.Repositories, p *models.Project) (billing.Snapshot, error) {
	invoices, err := tx.Invoices().ListByProject(ctx, p.ID)
	if err != nil {
		return billing.Snapshot{}, err
	}
	return billing.Snapshot{TotalBudget: p.TotalBudget, Invoices: invoices}, nil
}

// createMilestoneInvoice выставляет черновик счёта за этап, когда все его задачи приняты.
func (s *InvoiceService) createMilestoneInvoice(ctx context.Context, tx repository.Repositories, p *models.Project, m *models.Milestone) (*models.Invoice, bool, error) {
	if p.InvoicingMethod != models.InvoicingMilestone {
		return nil, false, apperror.InvalidInput("проект оплачивается не по этапам")
	}
	if m.ProjectID != p.ID {
		return nil, false, apperror.ErrMilestoneNotFound
	}
	if err := requireFreelancer(p); err != nil {
		return nil, false, err
	}

	tasks, err := tx.Tasks().ListByProject(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	var scoped []models.Task
	for _, t := range tasks {
		if t.MilestoneID != nil && *t.MilestoneID == m.ID {
			scoped = append(scoped, t)
		}
	}
	if !billing.ProjectProgress(scoped).AllApproved {
		return nil, false, apperror.ErrTasksNotApproved.WithDetails("этап: " + m.Title)
	}

	milestoneID := m.ID
	inv := s.draft(p, models.InvoiceTypeMilestone, m.ID.String(), models.InvoiceStatusDraft, m.Amount, []models.LineItem{{
		MilestoneID: &milestoneID,
		Description: m.Title,
		Rate:        models.Cents(m.Amount),
	}})
	return s.issue(ctx, tx, inv)
}

// upfrontInvoice возвращает счёт предоплаты проекта, создавая его при первом обращении.
func (s *InvoiceService) upfrontInvoice(ctx context.Context, tx repository.Repositories, p *models.Project) (*models.Invoice, bool, error) {
	if !p.IsCompletion() {
		return nil, false, apperror.InvalidInput("предоплата доступна только для проектов с оплатой по завершении")
	}
	if err := requireFreelancer(p); err != nil {
		return nil, false, err
	}
	amount, err := billing.Upfront(p.TotalBudget, p.UpfrontPercent)
	if err != nil {
		return nil, false, err
	}
	inv := s.draft(p, models.InvoiceTypeCompletionUpfront, "", models.InvoiceStatusProcessing, amount, []models.LineItem{{
		Description: fmt.Sprintf("Upfront payment %s%%", p.UpfrontPercent.String()),
		Rate:        amount,
	}})
	return s.issue(ctx, tx, inv)
}

// createManualInvoice выставляет счёт за принятую задачу completion-проекта.
func (s *InvoiceService) createManualInvoice(ctx context.Context, tx repository.Repositories, p *models.Project, task *models.Task) (*models.Invoice, bool, error) {
	if !p.IsCompletion() {
		return nil, false, apperror.InvalidInput("ручные счета доступны только для проектов с оплатой по завершении")
	}
	if task.ProjectID != p.ID {
		return nil, false, apperror.ErrTaskNotFound
	}
	if err := requireFreelancer(p); err != nil {
		return nil, false, err
	}
	if !task.Approved {
		return nil, false, apperror.ErrTasksNotApproved.WithDetails("задача: " + task.Title)
	}
	existing, err := tx.Invoices().FindByScope(ctx, p.ID, models.InvoiceTypeCompletionManual, task.ID.String())
	if err == nil {
		return existing, false, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}

	tasks, err := tx.Tasks().ListByProject(ctx, p.ID)
	if err != nil {
		return nil, false, err
	}
	snap, err := s.snapshot(ctx, tx, p)
	if err != nil {
		return nil, false, err
	}
	amount, err := billing.ManualAmount(snap, p.UpfrontPercent, len(tasks))
	if err != nil {
		return nil, false, err
	}

	report := billing.CheckIntegrity(snap, billing.Candidate{
		InvoiceType: models.InvoiceTypeCompletionManual,
		Amount:      amount,
	}, s.epsilon())
	if err := report.Err(); err != nil {
		return nil, false, err
	}

	taskID := task.ID
	inv := s.draft(p, models.InvoiceTypeCompletionManual, task.ID.String(), models.InvoiceStatusSent, amount, []models.LineItem{{
		TaskID:      &taskID,
		Description: task.Title,
		Rate:        amount,
	}})
	return s.issue(ctx, tx, inv)
}

// createFinalInvoice выставляет финальный счёт на остаток бюджета.
// Если остатка нет, счёт не создаётся и возвращается nil.
func (s *InvoiceService) createFinalInvoice(ctx context.Context, tx repository.Repositories, p *models.Project) (*models.Invoice, billing.Report, error) {
	if !p.IsCompletion() {
		return nil, billing.Report{}, apperror.InvalidInput("финальный счёт доступен только для проектов с оплатой по завершении")
	}
	if err := requireFreelancer(p); err != nil {
		return nil, billing.Report{}, err
	}

	tasks, err := tx.Tasks().ListByProject(ctx, p.ID)
	if err != nil {
		return nil, billing.Report{}, err
	}
	if progress := billing.ProjectProgress(tasks); !progress.AllApproved {
		return nil, billing.Report{}, apperror.ErrTasksNotApproved.WithDetails(
			fmt.Sprintf("принято %d из %d задач", progress.ApprovedTasks, progress.TotalTasks))
	}

	if _, err := tx.Invoices().FindByScope(ctx, p.ID, models.InvoiceTypeCompletionFinal, ""); err == nil {
		return nil, billing.Report{}, apperror.ErrAlreadyProcessed.WithDetails("финальный счёт уже выставлен")
	} else if !apperror.IsNotFound(err) {
		return nil, billing.Report{}, err
	}

	snap, err := s.snapshot(ctx, tx, p)
	if err != nil {
		return nil, billing.Report{}, err
	}
	// остаток считается от уже оплаченных ручных счетов, а после завершения проекта
	// неоплаченный счёт провести нельзя
	var unpaid []string
	for _, inv := range snap.Invoices {
		if inv.InvoiceType == models.InvoiceTypeCompletionManual &&
			inv.Status != models.InvoiceStatusPaid && inv.Status != models.InvoiceStatusCancelled {
			unpaid = append(unpaid, inv.InvoiceNumber+": "+inv.Status)
		}
	}
	if len(unpaid) > 0 {
		return nil, billing.Report{}, apperror.ErrUnpaidInvoices.WithDetails(unpaid...)
	}

	report := billing.Summarize(snap, "")
	if err := report.Err(); err != nil {
		return nil, report, err
	}
	if !report.Remaining.IsPositive() {
		return nil, report, nil
	}

	candidate := billing.Candidate{InvoiceType: models.InvoiceTypeCompletionFinal, Amount: report.Remaining}
	if err := billing.CheckIntegrity(snap, candidate, s.epsilon()).Err(); err != nil {
		return nil, report, err
	}

	inv := s.draft(p, models.InvoiceTypeCompletionFinal, "", models.InvoiceStatusProcessing, report.Remaining, []models.LineItem{{
		Description: "Final payment",
		Rate:        report.Remaining,
	}})
	created, _, err := s.issue(ctx, tx, inv)
	return created, report, err
}

// CreateMilestoneInvoice выставляет счёт за этап вручную (обычно он создаётся при принятии последней задачи этапа).
func (s *InvoiceService) CreateMilestoneInvoice(ctx context.Context, actor Actor, projectID, milestoneID uuid.UUID) (*models.Invoice, error) {
	var out *models.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if !canViewProject(actor, p) {
			return apperror.ErrForbidden
		}
		m, err := tx.Projects().GetMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		out, _, err = s.createMilestoneInvoice(ctx, tx, p, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateManualInvoice выставляет счёт за принятую задачу. Выставляет только фрилансер проекта.
func (s *InvoiceService) CreateManualInvoice(ctx context.Context, actor Actor, projectID, taskID uuid.UUID) (*models.Invoice, error) {
	if err := requireRole(actor, models.RoleFreelancer); err != nil {
		return nil, err
	}
	var out *models.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if !p.HasFreelancer(actor.UserID) {
			return apperror.ErrForbidden
		}
		task, err := tx.Tasks().GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		out, _, err = s.createManualInvoice(ctx, tx, p, task)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Send отправляет черновик заказчику: draft → sent.
func (s *InvoiceService) Send(ctx context.Context, actor Actor, number string) (*models.Invoice, error) {
	if err := requireRole(actor, models.RoleFreelancer); err != nil {
		return nil, err
	}
	var out *models.Invoice
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		inv, err := tx.Invoices().GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if inv.FreelancerID != actor.UserID {
			return apperror.ErrForbidden
		}
		from := inv.Status
		to, err := valueobject.Transition(from, models.InvoiceStatusSent)
		if err != nil {
			return err
		}
		now := s.now()
		inv.Status = to
		inv.SentAt = &now
		if err := tx.Invoices().Update(ctx, inv); err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, auditRecord{
			entityType: models.AuditEntityInvoice,
			entityID:   inv.InvoiceNumber,
			action:     "sent",
			actor:      actor.UserID,
			from:       from,
			to:         to,
		}); err != nil {
			return err
		}
		out = inv
		return enqueue(ctx, tx, models.EventInvoiceSent, inv.CommissionerID, newInvoiceEvent(inv))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get возвращает счёт, если пользователь - его сторона.
func (s *InvoiceService) Get(ctx context.Context, actor Actor, number string) (*models.Invoice, error) {
	inv, err := s.store.Invoices().GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !canViewInvoice(actor, inv) {
		return nil, apperror.ErrForbidden
	}
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, actor Actor, in ListInvoicesInput) ([]models.Invoice, error) {
	if in.Limit <= 0 || in.Limit > 100 {
		in.Limit = 20
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	if in.Status != "" {
		if _, err := valueobject.NewInvoiceStatus(in.Status); err != nil {
			return nil, err
		}
	}
	if in.InvoiceType != "" && !valueobject.InvoiceType(in.InvoiceType).IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "некорректный тип счёта")
	}
	invoices, err := s.store.Invoices().List(ctx, repository.InvoiceFilter{
		UserID:      actor.UserID,
		Role:        actor.Role,
		ProjectID:   in.ProjectID,
		Status:      in.Status,
		InvoiceType: in.InvoiceType,
		Limit:       in.Limit,
		Offset:      in.Offset,
	})
	if err != nil {
		return nil, err
	}
	if invoices == nil {
		invoices = []models.Invoice{}
	}
	return invoices, nil
}

// Transactions - история движения денег по счёту.
func (s *InvoiceService) Transactions(ctx context.Context, actor Actor, number string) ([]models.Transaction, error) {
	if _, err := s.Get(ctx, actor, number); err != nil {
		return nil, err
	}
	txs, err := s.store.Transactions().ListByInvoice(ctx, number)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}
