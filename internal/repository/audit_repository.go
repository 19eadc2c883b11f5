package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// AuditRepository пишет журнал переходов и записи для ручной сверки.
type AuditRepository struct {
	db sqlx.ExtContext
}

func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, e *models.AuditEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO audit_log (id, entity_type, entity_id, action, actor_id, from_status, to_status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, e.ID, e.EntityType, e.EntityID, e.Action, e.ActorID, e.FromStatus, e.ToStatus, e.Details).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit repository: record %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, `
		SELECT * FROM audit_log WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at, id
	`, entityType, entityID); err != nil {
		return nil, fmt.Errorf("audit repository: list %w", err)
	}
	return entries, nil
}

func (r *AuditRepository) CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = models.ReconciliationOpen
	}
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO payment_reconciliations (id, invoice_number, withdrawal_id, gateway_reference, amount, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rec.ID, rec.InvoiceNumber, rec.WithdrawalID, rec.GatewayReference, rec.Amount, rec.Reason, rec.Status).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit repository: create reconciliation %w", err)
	}
	return nil
}

// ListReconciliations возвращает записи сверки; пустой status - все.
func (r *AuditRepository) ListReconciliations(ctx context.Context, status string) ([]models.Reconciliation, error) {
	query := `SELECT * FROM payment_reconciliations`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	var recs []models.Reconciliation
	if err := sqlx.SelectContext(ctx, r.db, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("audit repository: list reconciliations %w", err)
	}
	return recs, nil
}
