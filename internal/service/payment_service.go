package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/domain/billing"
	"github.com/ignatzorin/freelance-payments/internal/domain/ledger"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-payments/internal/gateway"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

const defaultGatewayTimeout = 10 * time.Second

type PaymentConfig struct {
	GatewayTimeout   time.Duration
	IdempotencyTTL   time.Duration
	EligibilityCheck bool
}

// PaymentService проводит оплату счетов: запуск, списание через шлюз и зачисление в кошелёк.
type PaymentService struct {
	store       repository.Store
	invoices    *InvoiceService
	gateway     gateway.Gateway
	eligibility EligibilityChecker
	cfg         PaymentConfig
	idem        idempotencyGuard
	now         func() time.Time
}

func NewPaymentService(
	store repository.Store,
	invoices *InvoiceService,
	gw gateway.Gateway,
	eligibility EligibilityChecker,
	cfg PaymentConfig,
) *PaymentService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	now := func() time.Time { return time.Now().UTC() }
	return &PaymentService{
		store:       store,
		invoices:    invoices,
		gateway:     gw,
		eligibility: eligibility,
		cfg:         cfg,
		idem:        idempotencyGuard{ttl: cfg.IdempotencyTTL, now: now},
		now:         now,
	}
}

type TriggerResult struct {
	Invoice     *models.Invoice     `json:"invoice"`
	Transaction *models.Transaction `json:"transaction"`
}

// PaymentResult - итог оплаты. Для финального платежа без остатка Invoice и Transaction пустые.
type PaymentResult struct {
	Invoice     *models.Invoice     `json:"invoice,omitempty"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
	Wallet      *models.Wallet      `json:"wallet,omitempty"`
	Project     *models.Project     `json:"project,omitempty"`
	Summary     *billing.Report     `json:"summary,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PaymentService) checkEligibility(ctx context.Context, tx repository.Repositories, inv *models.Invoice) error {
	if !s.cfg.EligibilityCheck || s.eligibility == nil {
		return nil
	}
	err := s.eligibility.Check(ctx, tx, inv)
	if err == nil || errors.Is(err, apperror.ErrPaymentNotEligible) {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeServiceUnavailable, "проверка допуска к оплате недоступна")
}

// Trigger запускает оплату счёта: sent → processing. Запускает фрилансер, выставивший счёт.
func (s *PaymentService) Trigger(ctx context.Context, actor Actor, number, idempotencyKey string) (*TriggerResult, error) {
	if err := requireRole(actor, models.RoleFreelancer); err != nil {
		return nil, err
	}
	hash := requestHash(models.OperationTrigger, number)

	var result TriggerResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Repositories) error {
		stored, err := s.idem.claim(ctx, tx, models.OperationTrigger, idempotencyKey, actor.UserID, hash)
		if err != nil {
			return err
		}
		if stored != nil {
			return replay(stored, &result)
		}

		inv, err := tx.Invoices().GetForUpdate(ctx, number)
		if err != nil {
			return err
		}
		if inv.FreelancerID != actor.UserID {
			return apperror.ErrForbidden
		}
		from := inv.Status
		to, err := valueobject.Transition(from, models.InvoiceStatusProcessing)
		if err != nil {
			return err
		}
		if err := s.checkEligibility(ctx, tx, inv); err != nil {
			return err
		}

		correlationID := uuid.New()
		inv.Status = to
		inv.CorrelationID = &correlationID
		if err := tx.Invoices().Update(ctx, inv); err != nil {
			return err
		}

		txn := &models.Transaction{
			UserID:         inv.FreelancerID,
			InvoiceNumber:  &inv.InvoiceNumber,
			Type:           models.TransactionTypePaymentInitiation,
			Status:         models.TransactionStatusProcessing,
			Amount:         inv.TotalAmount,
			Currency:       inv.Currency,
			CorrelationID:  correlationID,
			IdempotencyKey: optional(idempotencyKey),
		}
		if err := tx.Transactions().Append(ctx, txn); err != nil {
			return err
		}
		if err := writeAudit(ctx, tx, auditRecord{
			entityType: models.AuditEntityInvoice,
			entityID:   inv.InvoiceNumber,
			action:     "payment_triggered",
			actor:      actor.UserID,
			from:       from,
			to:         to,
			details:    map[string]string{"correlationId": correlationID.String()},
		}); err != nil {
			return err
		}
		if err := enqueue(ctx, tx, models.EventInvoiceProcessing, inv.CommissionerID, newInvoiceEvent(inv)); err != nil {
			return err
		}

		result = TriggerResult{Invoice: inv, Transaction: txn}
		return s.idem.complete(ctx, tx, models.OperationTrigger, idempotencyKey, inv.InvoiceNumber, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// charge связывает транзакцию оплаты с запросом клиента.
// receipt заполняется, как только шлюз подтвердил списание.
type charge struct {
	reqCtx  context.Context
	receipt *gateway.Receipt
	invoice string
	amount  decimal.Decimal
}

// runPayment выполняет fn в транзакции, которую не прерывает отмена запроса.
// Если шлюз подтвердил списание, а транзакция не зафиксировалась, создаётся запись сверки
// и клиент получает PAYMENT_UNRESOLVED.
func (s *PaymentService) runPayment(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories, c *charge) error) error {
	c := &charge{reqCtx: ctx}
	txCtx := context.WithoutCancel(ctx)
	err := s.store.WithinTx(txCtx, func(txCtx context.Context, tx repository.Repositories) error {
		return fn(txCtx, tx, c)
	})
	if err == nil || c.receipt == nil {
		return err
	}

	log := logger.Log.WithFields(logrus.Fields{
		"invoice":           c.invoice,
		"gateway_reference": c.receipt.Reference,
		"amount":            c.amount.StringFixed(2),
	})
	log.WithError(err).Error("платёж проведён шлюзом, но не записан в леджер")

	number := c.invoice
	rec := &models.Reconciliation{
		InvoiceNumber:    &number,
		GatewayReference: c.receipt.Reference,
		Amount:           c.amount,
		Reason:           err.Error(),
		Status:           models.ReconciliationOpen,
	}
	if recErr := s.store.Audit().CreateReconciliation(txCtx, rec); recErr != nil {
		log.WithError(recErr).Error("не удалось сохранить запись сверки")
	}
	return apperror.Wrap(err, apperror.ErrCodePaymentUnresolved, apperror.ErrPaymentUnresolved.Message).
		WithDetails("gatewayReference: " + c.receipt.Reference)
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Wrap(err, apperror.ErrCodeGatewayTimeout, apperror.ErrGatewayTimeout.Message)
	case errors.Is(err, gateway.ErrDeclined):
		return apperror.Wrap(err, apperror.ErrCodePaymentFailed, apperror.ErrPaymentFailed.Message)
	case errors.Is(err, context.Canceled):
		return apperror.Wrap(err, apperror.ErrCodeServiceUnavailable, "запрос отменён до подтверждения платежа")
	default:
		return apperror.Wrap(err, apperror.ErrCodeServiceUnavailable, apperror.ErrServiceUnavailable.Message)
	}
}

// settle переводит счёт processing → paid: списание через шлюз, зачисление фрилансеру,
// запись транзакции, аудит и события. Проект и счёт должны быть заблокированы.
func (s *PaymentService) settle(ctx context.Context, tx repository.Repositories, c *charge, actor Actor, p *models.Project, inv *models.Invoice, idempotencyKey string) (*models.Transaction, *models.Wallet, error) {
	from := inv.Status
	to, err := valueobject.Transition(from, models.InvoiceStatusPaid)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != models.ProjectStatusActive {
		return nil, nil, apperror.ErrPaymentNotEligible.WithDetails("статус проекта: " + p.Status)
	}

	if inv.InvoiceType == models.InvoiceTypeCompletionManual || inv.InvoiceType == models.InvoiceTypeCompletionFinal {
		snap, err := s.invoices.snapshot(ctx, tx, p)
		if err != nil {
			return nil, nil, err
		}
		report := billing.CheckIntegrity(snap, billing.Candidate{
			InvoiceNumber: inv.InvoiceNumber,
			InvoiceType:   inv.InvoiceType,
			Amount:        inv.TotalAmount,
		}, s.invoices.epsilon())
		if err := report.Err(); err != nil {
			return nil, nil, err
		}
	}

	correlationID := uuid.New()
	if inv.CorrelationID != nil {
		correlationID = *inv.CorrelationID
	} else {
		inv.CorrelationID = &correlationID
	}

	log := logger.Log.WithFields(logrus.Fields{
		"invoice":        inv.InvoiceNumber,
		"correlation_id": correlationID,
	})

	if err := c.reqCtx.Err(); err != nil {
		return nil, nil, gatewayError(err)
	}
	gwCtx, cancel := context.WithTimeout(c.reqCtx, s.cfg.GatewayTimeout)
	receipt, err := s.gateway.Charge(gwCtx, gateway.ChargeRequest{
		InvoiceNumber: inv.InvoiceNumber,
		PayerID:       inv.CommissionerID,
		PayeeID:       inv.FreelancerID,
		Amount:        inv.TotalAmount,
		Currency:      inv.Currency,
		CorrelationID: correlationID,
	})
	cancel()
	if err != nil {
		log.WithError(err).Warn("шлюз не провёл платёж")
		return nil, nil, gatewayError(err)
	}
	c.receipt = &receipt
	c.invoice = inv.InvoiceNumber
	c.amount = inv.TotalAmount

	paidAt := s.now()
	inv.Status = to
	inv.PaidAt = &paidAt
	if err := tx.Invoices().Update(ctx, inv); err != nil {
		return nil, nil, err
	}

	wallet, err := tx.Wallets().GetOrCreateForUpdate(ctx, inv.FreelancerID, inv.Currency)
	if err != nil {
		return nil, nil, err
	}
	credited := ledger.Credit(*wallet, inv.PaymentDetails.FreelancerAmount)
	if !credited.OK {
		return nil, nil, fmt.Errorf("ledger credit %s: %s", inv.InvoiceNumber, credited.Reason)
	}
	if err := tx.Wallets().Save(ctx, &credited.Wallet); err != nil {
		return nil, nil, err
	}

	metadata, err := jsonText(map[string]string{
		"gatewayReference": receipt.Reference,
		"invoiceType":      inv.InvoiceType,
		"platformFee":      inv.PaymentDetails.PlatformFee.StringFixed(2),
	})
	if err != nil {
		return nil, nil, err
	}
	txn := &models.Transaction{
		UserID:         inv.FreelancerID,
		InvoiceNumber:  &inv.InvoiceNumber,
		Type:           models.TransactionTypePayment,
		Status:         models.TransactionStatusCompleted,
		Amount:         inv.PaymentDetails.FreelancerAmount,
		Currency:       inv.Currency,
		CorrelationID:  correlationID,
		IdempotencyKey: optional(idempotencyKey),
		Metadata:       metadata,
	}
	if err := tx.Transactions().Append(ctx, txn); err != nil {
		return nil, nil, err
	}

	if err := writeAudit(ctx, tx, auditRecord{
		entityType: models.AuditEntityInvoice,
		entityID:   inv.InvoiceNumber,
		action:     "paid",
		actor:      actor.UserID,
		from:       from,
		to:         to,
		details:    map[string]string{"gatewayReference": receipt.Reference},
	}); err != nil {
		return nil, nil, err
	}
	if err := writeAudit(ctx, tx, auditRecord{
		entityType: models.AuditEntityWallet,
		entityID:   walletEntityID(inv.FreelancerID, inv.Currency),
		action:     "credit",
		actor:      actor.UserID,
		details: map[string]string{
			"amount":           inv.PaymentDetails.FreelancerAmount.StringFixed(2),
			"invoiceNumber":    inv.InvoiceNumber,
			"availableBalance": credited.Wallet.AvailableBalance.StringFixed(2),
		},
	}); err != nil {
		return nil, nil, err
	}

	event := newInvoiceEvent(inv)
	if err := enqueue(ctx, tx, models.EventInvoicePaid, inv.FreelancerID, event); err != nil {
		return nil, nil, err
	}
	if err := enqueue(ctx, tx, models.EventPaymentSent, inv.CommissionerID, event); err != nil {
		return nil, nil, err
	}

	log.WithField("amount", inv.TotalAmount.StringFixed(2)).Info("счёт оплачен")
	return txn, &credited.Wallet, nil
}

func walletEntityID(userID uuid.UUID, currency string) string {
	return userID.String() + ":" + currency
}

// Execute оплачивает счёт в статусе processing. Оплачивает заказчик счёта.
func (s *PaymentService) Execute(ctx context.Context, actor Actor, number, idempotencyKey string) (*PaymentResult, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	hash := requestHash(models.OperationExecute, number)

	var result PaymentResult
	err := s.runPayment(ctx, func(ctx context.Context, tx repository.Repositories, c *charge) error {
		stored, err := s.idem.claim(ctx, tx, models.OperationExecute, idempotencyKey, actor.UserID, hash)
		if err != nil {
			return err
		}
		if stored != nil {
			return replay(stored, &result)
		}

		peek, err := tx.Invoices().GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		if peek.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		// порядок блокировок: проект, затем счёт
		p, err := tx.Projects().GetForUpdate(ctx, peek.ProjectID)
		if err != nil {
			return err
		}
		inv, err := tx.Invoices().GetForUpdate(ctx, number)
		if err != nil {
			return err
		}

		txn, wallet, err := s.settle(ctx, tx, c, actor, p, inv, idempotencyKey)
		if err != nil {
			return err
		}
		if inv.InvoiceType == models.InvoiceTypeMilestone {
			if err := s.completeIfSettled(ctx, tx, actor, p); err != nil {
				return err
			}
		}

		result = PaymentResult{Invoice: inv, Transaction: txn, Wallet: wallet, Project: p}
		return s.idem.complete(ctx, tx, models.OperationExecute, idempotencyKey, inv.InvoiceNumber, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// completeIfSettled завершает milestone-проект, когда оплачены счета всех этапов.
func (s *PaymentService) completeIfSettled(ctx context.Context, tx repository.Repositories, actor Actor, p *models.Project) error {
	milestones, err := tx.Projects().ListMilestones(ctx, p.ID)
	if err != nil || len(milestones) == 0 {
		return err
	}
	invoices, err := tx.Invoices().ListByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	paid := make(map[string]bool, len(invoices))
	for _, inv := range invoices {
		if inv.InvoiceType == models.InvoiceTypeMilestone && inv.Status == models.InvoiceStatusPaid {
			paid[inv.ScopeKey] = true
		}
	}
	for _, m := range milestones {
		if !paid[m.ID.String()] {
			return nil
		}
	}
	return completeProject(ctx, tx, p, actor.UserID, s.now())
}

// ExecuteUpfront оплачивает предоплату completion-проекта, выставляя счёт при необходимости.
func (s *PaymentService) ExecuteUpfront(ctx context.Context, actor Actor, projectID uuid.UUID, idempotencyKey string) (*PaymentResult, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	hash := requestHash(models.OperationExecuteUpfront, projectID.String())

	var result PaymentResult
	err := s.runPayment(ctx, func(ctx context.Context, tx repository.Repositories, c *charge) error {
		stored, err := s.idem.claim(ctx, tx, models.OperationExecuteUpfront, idempotencyKey, actor.UserID, hash)
		if err != nil {
			return err
		}
		if stored != nil {
			return replay(stored, &result)
		}

		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		issued, _, err := s.invoices.upfrontInvoice(ctx, tx, p)
		if err != nil {
			return err
		}
		inv, err := tx.Invoices().GetForUpdate(ctx, issued.InvoiceNumber)
		if err != nil {
			return err
		}

		txn, wallet, err := s.settle(ctx, tx, c, actor, p, inv, idempotencyKey)
		if err != nil {
			return err
		}
		result = PaymentResult{Invoice: inv, Transaction: txn, Wallet: wallet, Project: p}
		return s.idem.complete(ctx, tx, models.OperationExecuteUpfront, idempotencyKey, inv.InvoiceNumber, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteFinal выставляет и оплачивает финальный счёт на остаток бюджета и завершает проект.
// Если остатка нет, проект завершается без счёта.
func (s *PaymentService) ExecuteFinal(ctx context.Context, actor Actor, projectID uuid.UUID, idempotencyKey string) (*PaymentResult, error) {
	if err := requireRole(actor, models.RoleCommissioner); err != nil {
		return nil, err
	}
	hash := requestHash(models.OperationExecuteFinal, projectID.String())

	var result PaymentResult
	err := s.runPayment(ctx, func(ctx context.Context, tx repository.Repositories, c *charge) error {
		stored, err := s.idem.claim(ctx, tx, models.OperationExecuteFinal, idempotencyKey, actor.UserID, hash)
		if err != nil {
			return err
		}
		if stored != nil {
			return replay(stored, &result)
		}

		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if p.CommissionerID != actor.UserID {
			return apperror.ErrForbidden
		}
		if p.Status == models.ProjectStatusCompleted {
			return apperror.ErrAlreadyProcessed.WithDetails("проект уже завершён")
		}

		inv, report, err := s.invoices.createFinalInvoice(ctx, tx, p)
		if err != nil {
			return err
		}
		result = PaymentResult{Project: p, Summary: &report}

		resourceID := p.ID.String()
		if inv != nil {
			locked, err := tx.Invoices().GetForUpdate(ctx, inv.InvoiceNumber)
			if err != nil {
				return err
			}
			txn, wallet, err := s.settle(ctx, tx, c, actor, p, locked, idempotencyKey)
			if err != nil {
				return err
			}
			snap, err := s.invoices.snapshot(ctx, tx, p)
			if err != nil {
				return err
			}
			summary := billing.Summarize(snap, "")
			result.Invoice, result.Transaction, result.Wallet, result.Summary = locked, txn, wallet, &summary
			resourceID = locked.InvoiceNumber
		}

		if err := completeProject(ctx, tx, p, actor.UserID, s.now()); err != nil {
			return err
		}
		return s.idem.complete(ctx, tx, models.OperationExecuteFinal, idempotencyKey, resourceID, result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
