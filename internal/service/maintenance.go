package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/freelance-payments/internal/domain/billing"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/logger"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// MaintenanceService - служебные операции для paymentsctl.
type MaintenanceService struct {
	store repository.Store
}

func NewMaintenanceService(store repository.Store) *MaintenanceService {
	return &MaintenanceService{store: store}
}

// PurgeIdempotency удаляет истёкшие ключи идемпотентности.
func (s *MaintenanceService) PurgeIdempotency(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.Idempotency().PurgeExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	logger.Log.WithField("purged", n).Info("истёкшие ключи идемпотентности удалены")
	return n, nil
}

// Reconciliations возвращает платежи, ожидающие ручной сверки.
func (s *MaintenanceService) Reconciliations(ctx context.Context, status string) ([]models.Reconciliation, error) {
	if status == "" {
		status = models.ReconciliationOpen
	}
	items, err := s.store.Audit().ListReconciliations(ctx, status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Reconciliation{}
	}
	return items, nil
}

// AuditTrail - журнал переходов сущности.
func (s *MaintenanceService) AuditTrail(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	return s.store.Audit().ListByEntity(ctx, entityType, entityID)
}

// ProjectReport пересчитывает бюджет проекта с нуля по всем его счетам.
// Расхождения возвращаются в отчёте, а не ошибкой.
func (s *MaintenanceService) ProjectReport(ctx context.Context, projectID uuid.UUID) (billing.Report, error) {
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return billing.Report{}, err
	}
	invoices, err := s.store.Invoices().ListByProject(ctx, p.ID)
	if err != nil {
		return billing.Report{}, err
	}
	return billing.Summarize(billing.Snapshot{TotalBudget: p.TotalBudget, Invoices: invoices}, ""), nil
}

// DocumentArchive сохраняет печатную форму счёта.
type DocumentArchive interface {
	SaveBytes(ctx context.Context, invoiceNumber string, data []byte) (string, error)
}

// ExportInvoice формирует PDF без проверки стороны счёта и кладёт его в архив.
func (s *MaintenanceService) ExportInvoice(ctx context.Context, number string, archive DocumentArchive) (string, error) {
	inv, err := s.store.Invoices().GetByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	doc, err := renderInvoicePDF(inv)
	if err != nil {
		return "", err
	}
	path, err := archive.SaveBytes(ctx, inv.InvoiceNumber, doc)
	if err != nil {
		return "", err
	}
	logger.Log.WithFields(logrus.Fields{
		"invoice": inv.InvoiceNumber,
		"path":    path,
	}).Info("счёт выгружен в архив")
	return path, nil
}
