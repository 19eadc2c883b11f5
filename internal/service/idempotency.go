package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// requestHash - отпечаток запроса. Один ключ с другим запросом даёт IDEMPOTENCY_KEY_REUSED.
func requestHash(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// idempotencyGuard занимает ключ внутри денежной транзакции.
type idempotencyGuard struct {
	ttl time.Duration
	now func() time.Time
}

// claim возвращает сохранённый ответ, если операция с этим ключом уже выполнена.
// Пустой ключ отключает защиту.
func (g idempotencyGuard) claim(ctx context.Context, tx repository.Repositories, operation, key string, userID uuid.UUID, hash string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	rec := &models.IdempotencyRecord{
		Operation:      operation,
		IdempotencyKey: key,
		UserID:         userID,
		RequestHash:    hash,
		ExpiresAt:      g.now().Add(g.ttl),
	}
	claimed, existing, err := tx.Idempotency().Claim(ctx, rec)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, nil
	}
	if existing.UserID != userID || existing.RequestHash != hash {
		return nil, apperror.ErrIdempotencyKeyReused
	}
	if !existing.Completed() {
		// ключ занят транзакцией, которая ещё не сохранила ответ
		return nil, apperror.ErrConcurrentModification
	}
	return existing.Response, nil
}

func (g idempotencyGuard) complete(ctx context.Context, tx repository.Repositories, operation, key, resourceID string, result any) error {
	if key == "" {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("idempotency: marshal response: %w", err)
	}
	return tx.Idempotency().Complete(ctx, operation, key, resourceID, raw)
}

func replay(raw []byte, dest any) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("idempotency: decode stored response: %w", err)
	}
	return nil
}
