package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

func jsonText(v any) (types.JSONText, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return types.JSONText(raw), nil
}

// enqueue кладёт событие в outbox в той же транзакции, что и изменение состояния.
// Доставкой занимается OutboxDispatcher после фиксации.
func enqueue(ctx context.Context, tx repository.Repositories, eventType string, recipient uuid.UUID, data any) error {
	payload, err := jsonText(data)
	if err != nil {
		return err
	}
	return tx.Outbox().Enqueue(ctx, &models.OutboxEvent{
		EventType:   eventType,
		RecipientID: recipient,
		Payload:     payload,
	})
}

type auditRecord struct {
	entityType string
	entityID   string
	action     string
	actor      uuid.UUID
	from       string
	to         string
	details    any
}

func writeAudit(ctx context.Context, tx repository.Repositories, rec auditRecord) error {
	details, err := jsonText(rec.details)
	if err != nil {
		return err
	}
	entry := &models.AuditEntry{
		EntityType: rec.entityType,
		EntityID:   rec.entityID,
		Action:     rec.action,
		Details:    details,
	}
	if rec.actor != uuid.Nil {
		actor := rec.actor
		entry.ActorID = &actor
	}
	if rec.from != "" {
		from := rec.from
		entry.FromStatus = &from
	}
	if rec.to != "" {
		to := rec.to
		entry.ToStatus = &to
	}
	return tx.Audit().Record(ctx, entry)
}

// invoiceEvent - полезная нагрузка событий по счёту.
type invoiceEvent struct {
	InvoiceNumber string    `json:"invoiceNumber"`
	ProjectID     uuid.UUID `json:"projectId"`
	InvoiceType   string    `json:"invoiceType"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
}

func newInvoiceEvent(inv *models.Invoice) invoiceEvent {
	return invoiceEvent{
		InvoiceNumber: inv.InvoiceNumber,
		ProjectID:     inv.ProjectID,
		InvoiceType:   inv.InvoiceType,
		Status:        inv.Status,
		Amount:        inv.TotalAmount.StringFixed(2),
		Currency:      inv.Currency,
	}
}
