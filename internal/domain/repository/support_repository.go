package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type IdempotencyRepository interface {
	// Claim занимает ключ. Если ключ уже занят и не истёк, claimed == false и возвращается существующая запись.
	Claim(ctx context.Context, record *models.IdempotencyRecord) (claimed bool, existing *models.IdempotencyRecord, err error)
	Complete(ctx context.Context, operation, key, resourceID string, response []byte) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error)
	CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error
	ListReconciliations(ctx context.Context, status string) ([]models.Reconciliation, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *models.OutboxEvent) error
	// ClaimDue блокирует готовые к доставке события (SKIP LOCKED). Вызывается внутри транзакции.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time, dead bool) error
}

type NotificationRepository interface {
	// Create при повторе EventID не вставляет строку, а заполняет notification существующей.
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkAsRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
