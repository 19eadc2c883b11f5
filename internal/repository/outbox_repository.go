package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// OutboxRepository - очередь событий, записанных вместе с изменением денег.
type OutboxRepository struct {
	db sqlx.ExtContext
}

func NewOutboxRepository(db sqlx.ExtContext) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = models.OutboxStatusPending
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO outbox_events (id, event_type, recipient_id, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING next_attempt_at, created_at
	`, e.ID, e.EventType, e.RecipientID, e.Payload, e.Status).Scan(&e.NextAttemptAt, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("outbox repository: enqueue %w", err)
	}
	return nil
}

// ClaimDue блокирует пачку готовых событий. Параллельные диспетчеры пропускают
// заблокированные строки и не доставляют одно событие дважды.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	if err := sqlx.SelectContext(ctx, r.db, &events, `
		SELECT * FROM outbox_events
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at, created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit); err != nil {
		return nil, fmt.Errorf("outbox repository: claim due %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = 'delivered', delivered_at = $2, attempts = attempts + 1 WHERE id = $1
	`, id, at); err != nil {
		return fmt.Errorf("outbox repository: mark delivered %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time, dead bool) error {
	status := models.OutboxStatusPending
	if dead {
		status = models.OutboxStatusDead
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5 WHERE id = $1
	`, id, status, attempts, lastError, nextAttemptAt); err != nil {
		return fmt.Errorf("outbox repository: mark failed %w", err)
	}
	return nil
}
