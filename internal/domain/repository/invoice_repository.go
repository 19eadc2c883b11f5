package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type InvoiceFilter struct {
	UserID      uuid.UUID
	Role        string
	ProjectID   *uuid.UUID
	Status      string
	InvoiceType string
	Limit       int
	Offset      int
}

type InvoiceRepository interface {
	// NextNumber выделяет следующий номер в последовательности префикса.
	NextNumber(ctx context.Context, prefix string) (string, error)
	// Create сохраняет счёт со строками. При совпадении (project, type, scope) возвращает ErrAlreadyExists.
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByNumber(ctx context.Context, number string) (*models.Invoice, error)
	GetForUpdate(ctx context.Context, number string) (*models.Invoice, error)
	FindByScope(ctx context.Context, projectID uuid.UUID, invoiceType, scopeKey string) (*models.Invoice, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
}
