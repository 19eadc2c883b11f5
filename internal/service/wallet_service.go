package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/domain/ledger"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/gateway"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// WalletService - кошелёк фрилансера: баланс, история и вывод средств.
type WalletService struct {
	store   repository.Store
	gateway gateway.Gateway
	policy  config.BillingPolicy
	timeout time.Duration
	idem    idempotencyGuard
	now     func() time.Time
}

func NewWalletService(store repository.Store, gw gateway.Gateway, policy config.BillingPolicy, cfg PaymentConfig) *WalletService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = defaultGatewayTimeout
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	now := func() time.Time { return time.Now().UTC() }
	return &WalletService{
		store:   store,
		gateway: gw,
		policy:  policy,
		timeout: cfg.GatewayTimeout,
		idem:    idempotencyGuard{ttl: cfg.IdempotencyTTL, now: now},
		now:     now,
	}
}

type WithdrawalInput struct {
	Amount       decimal.Decimal
	Currency     string
	WithdrawalID *uuid.UUID
}

type WithdrawalResult struct {
	Withdrawal   *models.Withdrawal   `json:"withdrawal"`
	Wallet       *models.Wallet       `json:"wallet"`
	Transactions []models.Transaction `json:"transactions"`
}

func (s *WalletService) currency(c string) string {
	if c == "" {
		return s.policy.DefaultCurrency
	}
	return strings.ToUpper(c)
}

// GetWallet возвращает кошелёк. До первого зачисления кошелёк пустой.
func (s *WalletService) GetWallet(ctx context.Context, actor Actor, currency string) (*models.Wallet, error) {
	if actor.UserID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	w, err := s.store.Wallets().Get(ctx, actor.UserID, s.currency(currency))
	if apperror.IsNotFound(err) {
		return models.NewWallet(actor.UserID, s.currency(currency)), nil
	}
	return w, err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *WalletService) ListTransactions(ctx context.Context, actor Actor, limit, offset int) ([]models.Transaction, error) {
	limit, offset = clampPage(limit, offset)
	txs, err := s.store.Transactions().ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

func (s *WalletService) ListWithdrawals(ctx context.Context, actor Actor, limit, offset int) ([]models.Withdrawal, error) {
	limit, offset = clampPage(limit, offset)
	items, err := s.store.Withdrawals().ListByUser(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Withdrawal{}
	}
	return items, nil
}

func (s *WalletService) GetWithdrawal(ctx context.Context, actor Actor, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.store.Withdrawals().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.UserID != actor.UserID {
		return nil, apperror.ErrForbidden
	}
	return w, nil
}

// RequestWithdrawal выводит средства: удержание, выплата через шлюз, затем списание
// удержания. Отказ или таймаут шлюза откатывает удержание и возвращается как ошибка шлюза. Идентификатор вывода служит ключом идемпотентности.
func (s *WalletService) RequestWithdrawal(ctx context.Context, actor Actor, in WithdrawalInput) (*WithdrawalResult, error) {
	if err := requireRole(actor, models.RoleFreelancer); err != nil {
		return nil, err
	}
	amount := models.Cents(in.Amount)
	if !amount.IsPositive() {
		return nil, apperror.InvalidInput("сумма вывода должна быть больше нуля")
	}
	if amount.LessThan(s.policy.MinWithdrawal) {
		return nil, apperror.InvalidInput("минимальная сумма вывода " + s.policy.MinWithdrawal.StringFixed(2))
	}
	currency := s.currency(in.Currency)
	withdrawalID := uuid.New()
	if in.WithdrawalID != nil {
		withdrawalID = *in.WithdrawalID
	}
	key := withdrawalID.String()
	hash := requestHash(models.OperationWithdraw, amount.StringFixed(2), currency)

	var (
		result  WithdrawalResult
		receipt *gateway.Receipt
	)
	txCtx := context.WithoutCancel(ctx)
	err := s.store.WithinTx(txCtx, func(txCtx context.Context, tx repository.Repositories) error {
		stored, err := s.idem.claim(txCtx, tx, models.OperationWithdraw, key, actor.UserID, hash)
		if err != nil {
			return err
		}
		if stored != nil {
			return replay(stored, &result)
		}

		wallet, err := tx.Wallets().GetOrCreateForUpdate(txCtx, actor.UserID, currency)
		if err != nil {
			return err
		}
		held := ledger.Hold(*wallet, amount)
		if !held.OK {
			if held.Reason == ledger.ReasonInsufficientFunds {
				return apperror.ErrInsufficientFunds.WithDetails(
					"доступно " + wallet.AvailableBalance.StringFixed(2) + " " + currency)
			}
			return apperror.InvalidInput(string(held.Reason))
		}
		if err := tx.Wallets().Save(txCtx, &held.Wallet); err != nil {
			return err
		}

		withdrawal := &models.Withdrawal{
			ID:       withdrawalID,
			UserID:   actor.UserID,
			Amount:   amount,
			Currency: currency,
			Status:   models.WithdrawalStatusPending,
		}
		if err := tx.Withdrawals().Create(txCtx, withdrawal); err != nil {
			return err
		}
		correlationID := uuid.New()
		holdTxn := models.Transaction{
			UserID:         actor.UserID,
			WithdrawalID:   &withdrawal.ID,
			Type:           models.TransactionTypeWithdrawalHold,
			Status:         models.TransactionStatusProcessing,
			Amount:         amount,
			Currency:       currency,
			CorrelationID:  correlationID,
			IdempotencyKey: &key,
		}
		if err := tx.Transactions().Append(txCtx, &holdTxn); err != nil {
			return err
		}

		log := logger.Log.WithFields(logrus.Fields{
			"withdrawal_id": withdrawal.ID,
			"user_id":       actor.UserID,
			"amount":        amount.StringFixed(2),
		})

		gwCtx, cancel := context.WithTimeout(ctx, s.timeout)
		paid, payoutErr := s.gateway.Payout(gwCtx, gateway.PayoutRequest{
			WithdrawalID: withdrawal.ID,
			UserID:       actor.UserID,
			Amount:       amount,
			Currency:     currency,
		})
		cancel()

		if payoutErr != nil {
			// откат транзакции снимает удержание и ключ идемпотентности, повтор с тем же id снова идёт в шлюз
			log.WithError(payoutErr).Warn("шлюз не провёл вывод, удержание откатывается")
			return gatewayError(payoutErr)
		}

		now := s.now()
		withdrawal.ProcessedAt = &now
		receipt = &paid
		settled := ledger.FinalizeWithdrawal(held.Wallet, amount)
		withdrawal.Status = models.WithdrawalStatusPaid
		withdrawal.GatewayReference = &paid.Reference
		final := models.Transaction{Type: models.TransactionTypeWithdrawal, Status: models.TransactionStatusCompleted}
		log.Info("вывод средств выполнен")
		if !settled.OK {
			return fmt.Errorf("ledger settle withdrawal %s: %s", withdrawal.ID, settled.Reason)
		}
		if err := tx.Wallets().Save(txCtx, &settled.Wallet); err != nil {
			return err
		}
		if err := tx.Withdrawals().Update(txCtx, withdrawal); err != nil {
			return err
		}

		final.UserID = actor.UserID
		final.WithdrawalID = &withdrawal.ID
		final.Amount = amount
		final.Currency = currency
		final.CorrelationID = correlationID
		final.IdempotencyKey = &key
		if final.Metadata, err = jsonText(map[string]string{"gatewayReference": receipt.Reference}); err != nil {
			return err
		}
		if err := tx.Transactions().Append(txCtx, &final); err != nil {
			return err
		}

		if err := writeAudit(txCtx, tx, auditRecord{
			entityType: models.AuditEntityWithdrawal,
			entityID:   withdrawal.ID.String(),
			action:     "processed",
			actor:      actor.UserID,
			from:       models.WithdrawalStatusPending,
			to:         withdrawal.Status,
			details:    map[string]string{"amount": amount.StringFixed(2), "currency": currency},
		}); err != nil {
			return err
		}
		if err := enqueue(txCtx, tx, models.EventWithdrawalPaid, actor.UserID, withdrawal); err != nil {
			return err
		}

		result = WithdrawalResult{
			Withdrawal:   withdrawal,
			Wallet:       &settled.Wallet,
			Transactions: []models.Transaction{holdTxn, final},
		}
		return s.idem.complete(txCtx, tx, models.OperationWithdraw, key, key, result)
	})
	if err == nil {
		return &result, nil
	}
	if receipt == nil {
		return nil, err
	}

	log := logger.Log.WithFields(logrus.Fields{"withdrawal_id": withdrawalID, "gateway_reference": receipt.Reference})
	log.WithError(err).Error("выплата проведена шлюзом, но не записана в леджер")
	rec := &models.Reconciliation{
		WithdrawalID:     &withdrawalID,
		GatewayReference: receipt.Reference,
		Amount:           amount,
		Reason:           err.Error(),
		Status:           models.ReconciliationOpen,
	}
	if recErr := s.store.Audit().CreateReconciliation(txCtx, rec); recErr != nil {
		log.WithError(recErr).Error("не удалось сохранить запись сверки")
	}
	return nil, apperror.Wrap(err, apperror.ErrCodePaymentUnresolved, apperror.ErrPaymentUnresolved.Message).
		WithDetails("gatewayReference: " + receipt.Reference)
}
