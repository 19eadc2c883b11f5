package persistence

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	sqlrepo "github.com/ignatzorin/freelance-payments/internal/repository"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

// repos собирает sqlx-репозитории поверх *sqlx.DB или *sqlx.Tx.
type repos struct {
	ext sqlx.ExtContext
}

func (r repos) Users() repository.UserRepository {
	return sqlrepo.NewUserRepository(r.ext)
}

func (r repos) Projects() repository.ProjectRepository {
	return sqlrepo.NewProjectRepository(r.ext)
}

func (r repos) Tasks() repository.TaskRepository {
	return sqlrepo.NewTaskRepository(r.ext)
}

func (r repos) Invoices() repository.InvoiceRepository {
	return sqlrepo.NewInvoiceRepository(r.ext)
}

func (r repos) Wallets() repository.WalletRepository {
	return sqlrepo.NewWalletRepository(r.ext)
}

func (r repos) Transactions() repository.TransactionRepository {
	return sqlrepo.NewTransactionRepository(r.ext)
}

func (r repos) Withdrawals() repository.WithdrawalRepository {
	return sqlrepo.NewWithdrawalRepository(r.ext)
}

func (r repos) Idempotency() repository.IdempotencyRepository {
	return sqlrepo.NewIdempotencyRepository(r.ext)
}

func (r repos) Audit() repository.AuditRepository {
	return sqlrepo.NewAuditRepository(r.ext)
}

func (r repos) Outbox() repository.OutboxRepository {
	return sqlrepo.NewOutboxRepository(r.ext)
}

func (r repos) Notifications() repository.NotificationRepository {
	return sqlrepo.NewNotificationRepository(r.ext)
}

// Store - реализация repository.Store на PostgreSQL.
type Store struct {
	repos
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{repos: repos{ext: db}, db: db}
}

// WithinTx выполняет fn в одной транзакции БД. Блокировки, взятые через *ForUpdate,
// держатся до фиксации или отката.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	return common.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(ctx, repos{ext: tx})
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ repository.Store = (*Store)(nil)
