package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification - уведомление, доставленное пользователю.
// EventID связывает уведомление с событием outbox: одно событие даёт не больше одного уведомления.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"userId"`
	EventType string          `db:"event_type" json:"eventType"`
	EventID   *uuid.UUID      `db:"event_id" json:"eventId,omitempty"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"isRead"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
