package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// Операции, защищённые ключом идемпотентности.
const (
	OperationTrigger        = "payments.trigger"
	OperationExecute        = "payments.execute"
	OperationExecuteUpfront = "payments.execute_upfront"
	OperationExecuteFinal   = "payments.execute_final"
	OperationWithdraw       = "withdraw"
)

// IdempotencyRecord запоминает результат операции под ключом клиента.
type IdempotencyRecord struct {
	Operation      string         `db:"operation"`
	IdempotencyKey string         `db:"idempotency_key"`
	UserID         uuid.UUID      `db:"user_id"`
	RequestHash    string         `db:"request_hash"`
	ResourceID     *string        `db:"resource_id"`
	Response       types.JSONText `db:"response"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
}

// Completed сообщает, сохранён ли уже ответ операции.
func (r *IdempotencyRecord) Completed() bool {
	return len(r.Response) > 0
}
