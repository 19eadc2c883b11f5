package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

var errTransactionNotFound = apperror.New(apperror.ErrCodeNotFound, "транзакция не найдена")

// TransactionRepository - журнал движения денег. Записи только добавляются.
type TransactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Append(ctx context.Context, t *models.Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if len(t.Metadata) == 0 {
		t.Metadata = types.JSONText(`{}`)
	}
	query := `
		INSERT INTO transactions (id, user_id, invoice_number, withdrawal_id, type, status, amount,
			currency, correlation_id, idempotency_key, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		t.ID,
		t.UserID,
		t.InvoiceNumber,
		t.WithdrawalID,
		t.Type,
		t.Status,
		t.Amount,
		t.Currency,
		t.CorrelationID,
		t.IdempotencyKey,
		t.Metadata,
	).Scan(&t.CreatedAt); err != nil {
		return fmt.Errorf("transaction repository: append %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return common.GetByID[models.Transaction](ctx, r.db, "transactions", id, errTransactionNotFound)
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &txs, `
		SELECT * FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("transaction repository: list by user %w", err)
	}
	return txs, nil
}

func (r *TransactionRepository) ListByInvoice(ctx context.Context, number string) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := sqlx.SelectContext(ctx, r.db, &txs,
		`SELECT * FROM transactions WHERE invoice_number = $1 ORDER BY created_at, id`, number); err != nil {
		return nil, fmt.Errorf("transaction repository: list by invoice %w", err)
	}
	return txs, nil
}
