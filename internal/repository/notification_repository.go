package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// NotificationRepository хранит уведомления пользователей.
type NotificationRepository struct {
	db sqlx.ExtContext
}

func NewNotificationRepository(db sqlx.ExtContext) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create вставляет уведомление. Если уведомление для того же события outbox уже есть,
// новая строка не появляется, а в notification подставляется сохранённая.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO notifications (id, user_id, event_type, event_id, payload, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING created_at`,
		n.ID, n.UserID, n.EventType, n.EventID, n.Payload, n.IsRead,
	).Scan(&n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) && n.EventID != nil {
		var existing models.Notification
		if err := sqlx.GetContext(ctx, r.db, &existing, `SELECT * FROM notifications WHERE event_id = $1`, *n.EventID); err != nil {
			return fmt.Errorf("notification repository: load duplicate: %w", err)
		}
		*n = existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("notification repository: create: %w", err)
	}
	return nil
}

// List возвращает уведомления пользователя, новые сверху.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT * FROM notifications WHERE user_id = $1`)
	if unreadOnly {
		sb.WriteString(` AND NOT is_read`)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`)

	var items []models.Notification
	if err := sqlx.SelectContext(ctx, r.db, &items, sb.String(), userID, limit, offset); err != nil {
		return nil, fmt.Errorf("notification repository: list: %w", err)
	}
	return items, nil
}

// MarkAsRead помечает уведомление прочитанным. Чужое уведомление не находится.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("notification repository: mark read: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("notification repository: mark read: %w", err)
	} else if n == 0 {
		return apperror.ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead возвращает число уведомлений, которые были непрочитанными.
func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("notification repository: mark all read: %w", err)
	}
	return res.RowsAffected()
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID); err != nil {
		return 0, fmt.Errorf("notification repository: count unread: %w", err)
	}
	return count, nil
}
