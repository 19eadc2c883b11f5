package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

// WalletRepository хранит кошельки (по одному на пользователя и валюту).
type WalletRepository struct {
	db sqlx.ExtContext
}

func NewWalletRepository(db sqlx.ExtContext) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Get(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	var w models.Wallet
	err := sqlx.GetContext(ctx, r.db, &w, `SELECT * FROM wallets WHERE user_id = $1 AND currency = $2`, userID, currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet repository: get %w", err)
	}
	return &w, nil
}

// GetOrCreateForUpdate создаёт кошелёк при первом зачислении и блокирует его строку.
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO NOTHING
	`, userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository: ensure %w", err)
	}

	var w models.Wallet
	if err := sqlx.GetContext(ctx, r.db, &w,
		`SELECT * FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`, userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository: lock %w", err)
	}
	return &w, nil
}

// Save записывает новое состояние кошелька, полученное из ledger.
func (r *WalletRepository) Save(ctx context.Context, w *models.Wallet) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE wallets
		SET available_balance = $3, pending_withdrawals = $4, total_withdrawn = $5,
			lifetime_earnings = $6, holds = $7, version = version + 1, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2 AND version = $8
		RETURNING version, updated_at
	`,
		w.UserID,
		w.Currency,
		w.AvailableBalance,
		w.PendingWithdrawals,
		w.TotalWithdrawn,
		w.LifetimeEarnings,
		w.Holds,
		w.Version,
	).Scan(&w.Version, &w.UpdatedAt)
	if err != nil {
		if common.IsCheckViolation(err) {
			return apperror.ErrInsufficientFunds
		}
		return common.VersionConflict(err)
	}
	return nil
}
