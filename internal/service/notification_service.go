package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// NotificationService хранит уведомления о событиях оплаты и отдаёт их пользователю.
type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// notificationPayload - формат уведомления, одинаковый для REST и WebSocket.
type notificationPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// CreateNotification сохраняет уведомление о событии. data - уже сериализованная полезная нагрузка события.
func (s *NotificationService) CreateNotification(ctx context.Context, userID uuid.UUID, event string, data json.RawMessage) (*models.Notification, error) {
	return s.create(ctx, userID, event, nil, data)
}

// DeliverEvent превращает событие outbox в уведомление получателя.
// Повторная доставка того же события возвращает уже созданное уведомление.
func (s *NotificationService) DeliverEvent(ctx context.Context, event models.OutboxEvent) (*models.Notification, error) {
	id := event.ID
	return s.create(ctx, event.RecipientID, event.EventType, &id, json.RawMessage(event.Payload))
}

func (s *NotificationService) create(ctx context.Context, userID uuid.UUID, event string, eventID *uuid.UUID, data json.RawMessage) (*models.Notification, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	payloadBytes, err := json.Marshal(notificationPayload{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:    userID,
		EventType: event,
		EventID:   eventID,
		Payload:   payloadBytes,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

// ListNotifications возвращает уведомления пользователя, новые сверху.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	limit, offset = clampPage(limit, offset)
	items, err := s.repo.List(ctx, userID, limit, offset, unreadOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, nil
}

// MarkAsRead отмечает уведомление прочитанным. Чужое уведомление считается ненайденным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id, userID)
}

// MarkAllAsRead возвращает число отмеченных уведомлений.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
