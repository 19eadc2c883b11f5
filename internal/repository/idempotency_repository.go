package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// IdempotencyRepository хранит ключи идемпотентности денежных операций.
type IdempotencyRepository struct {
	db sqlx.ExtContext
}

func NewIdempotencyRepository(db sqlx.ExtContext) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Claim занимает (operation, key). Истёкшую запись перезаписывает.
// Конкурентный Claim с тем же ключом ждёт фиксации первой транзакции.
func (r *IdempotencyRepository) Claim(ctx context.Context, rec *models.IdempotencyRecord) (bool, *models.IdempotencyRecord, error) {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO idempotency_records (operation, idempotency_key, user_id, request_hash, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (operation, idempotency_key) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			request_hash = EXCLUDED.request_hash,
			resource_id = NULL,
			response = NULL,
			created_at = NOW(),
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at < NOW()
		RETURNING created_at
	`, rec.Operation, rec.IdempotencyKey, rec.UserID, rec.RequestHash, rec.ExpiresAt).Scan(&rec.CreatedAt)
	if err == nil {
		return true, nil, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, nil, fmt.Errorf("idempotency repository: claim %w", err)
	}

	var existing models.IdempotencyRecord
	if err := sqlx.GetContext(ctx, r.db, &existing, `
		SELECT * FROM idempotency_records WHERE operation = $1 AND idempotency_key = $2
	`, rec.Operation, rec.IdempotencyKey); err != nil {
		return false, nil, fmt.Errorf("idempotency repository: load existing %w", err)
	}
	return false, &existing, nil
}

// Complete сохраняет ответ, который будет возвращаться на повторы.
func (r *IdempotencyRepository) Complete(ctx context.Context, operation, key, resourceID string, response []byte) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE idempotency_records SET resource_id = $3, response = $4
		WHERE operation = $1 AND idempotency_key = $2
	`, operation, key, resourceID, types.JSONText(response))
	if err != nil {
		return fmt.Errorf("idempotency repository: complete %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("idempotency repository: purge %w", err)
	}
	return res.RowsAffected()
}
