package repository

import (
	"context"
	"errors"
)

// ErrAlreadyExists возвращается, когда запись с тем же ключом уникальности уже есть.
var ErrAlreadyExists = errors.New("entity already exists")

// Repositories - набор репозиториев, работающих в одной транзакции либо вне её.
type Repositories interface {
	Users() UserRepository
	Projects() ProjectRepository
	Tasks() TaskRepository
	Invoices() InvoiceRepository
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Withdrawals() WithdrawalRepository
	Idempotency() IdempotencyRepository
	Audit() AuditRepository
	Outbox() OutboxRepository
	Notifications() NotificationRepository
}

// Store открывает транзакции. Если fn вернула ошибку, все изменения откатываются.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Ping(ctx context.Context) error
}
