package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

type WithdrawalRepository struct {
	db sqlx.ExtContext
}

func NewWithdrawalRepository(db sqlx.ExtContext) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO withdrawals (id, user_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, w.ID, w.UserID, w.Amount, w.Currency, w.Status).Scan(&w.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return apperror.ErrAlreadyProcessed
		}
		return fmt.Errorf("withdrawal repository: create %w", err)
	}
	return nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetByID[models.Withdrawal](ctx, r.db, "withdrawals", id, apperror.ErrWithdrawalNotFound)
}

func (r *WithdrawalRepository) Update(ctx context.Context, w *models.Withdrawal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE withdrawals
		SET status = $2, gateway_reference = $3, failure_reason = $4, processed_at = $5
		WHERE id = $1
	`, w.ID, w.Status, w.GatewayReference, w.FailureReason, w.ProcessedAt)
	if err != nil {
		return fmt.Errorf("withdrawal repository: update %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.ErrWithdrawalNotFound
	}
	return nil
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	if err := sqlx.SelectContext(ctx, r.db, &withdrawals, `
		SELECT * FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by user %w", err)
	}
	return withdrawals, nil
}
