package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type WalletRepository interface {
	Get(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error)
	// GetOrCreateForUpdate создаёт пустой кошелёк при первом обращении и блокирует строку.
	GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error)
	Save(ctx context.Context, wallet *models.Wallet) error
}

// TransactionRepository только добавляет записи, изменять их нельзя.
type TransactionRepository interface {
	Append(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error)
	ListByInvoice(ctx context.Context, number string) ([]models.Transaction, error)
}

type WithdrawalRepository interface {
	Create(ctx context.Context, withdrawal *models.Withdrawal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	Update(ctx context.Context, withdrawal *models.Withdrawal) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
}
