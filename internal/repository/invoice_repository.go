package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	domain "github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/repository/common"
)

const invoiceColumns = `
	invoice_number, project_id, freelancer_id, commissioner_id, invoice_type, scope_key,
	total_amount, currency, status, platform_fee, freelancer_amount, correlation_id, version,
	issued_at, sent_at, paid_at, updated_at`

// invoiceRow - плоское представление строки invoices.
type invoiceRow struct {
	InvoiceNumber    string          `db:"invoice_number"`
	ProjectID        uuid.UUID       `db:"project_id"`
	FreelancerID     uuid.UUID       `db:"freelancer_id"`
	CommissionerID   uuid.UUID       `db:"commissioner_id"`
	InvoiceType      string          `db:"invoice_type"`
	ScopeKey         string          `db:"scope_key"`
	TotalAmount      decimal.Decimal `db:"total_amount"`
	Currency         string          `db:"currency"`
	Status           string          `db:"status"`
	PlatformFee      decimal.Decimal `db:"platform_fee"`
	FreelancerAmount decimal.Decimal `db:"freelancer_amount"`
	CorrelationID    *uuid.UUID      `db:"correlation_id"`
	Version          int64           `db:"version"`
	IssuedAt         time.Time       `db:"issued_at"`
	SentAt           *time.Time      `db:"sent_at"`
	PaidAt           *time.Time      `db:"paid_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (row invoiceRow) toModel() models.Invoice {
	return models.Invoice{
		InvoiceNumber:  row.InvoiceNumber,
		ProjectID:      row.ProjectID,
		FreelancerID:   row.FreelancerID,
		CommissionerID: row.CommissionerID,
		InvoiceType:    row.InvoiceType,
		ScopeKey:       row.ScopeKey,
		TotalAmount:    row.TotalAmount,
		Currency:       row.Currency,
		Status:         row.Status,
		CorrelationID:  row.CorrelationID,
		Version:        row.Version,
		IssuedAt:       row.IssuedAt,
		SentAt:         row.SentAt,
		PaidAt:         row.PaidAt,
		UpdatedAt:      row.UpdatedAt,
		PaymentDetails: models.PaymentDetails{
			PlatformFee:      row.PlatformFee,
			FreelancerAmount: row.FreelancerAmount,
		},
		Milestones: []models.LineItem{},
	}
}

// InvoiceRepository хранит счета и их строки.
type InvoiceRepository struct {
	db sqlx.ExtContext
}

func NewInvoiceRepository(db sqlx.ExtContext) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// NextNumber атомарно увеличивает счётчик префикса и форматирует номер как PREFIX-000042.
// Заказчики с одинаковыми инициалами делят один счётчик, поэтому номера не повторяются.
func (r *InvoiceRepository) NextNumber(ctx context.Context, prefix string) (string, error) {
	var seq int64
	err := sqlx.GetContext(ctx, r.db, &seq, `
		INSERT INTO invoice_sequences (prefix, last_value)
		VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, prefix)
	if err != nil {
		return "", fmt.Errorf("invoice repository: next number %w", err)
	}
	return fmt.Sprintf("%s-%06d", prefix, seq), nil
}

// Create вставляет счёт и его строки. Конфликт по (project, type, scope) не прерывает
// транзакцию: ON CONFLICT DO NOTHING и ErrAlreadyExists вызывающему.
func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	query := `
		INSERT INTO invoices (invoice_number, project_id, freelancer_id, commissioner_id, invoice_type,
			scope_key, total_amount, currency, status, platform_fee, freelancer_amount, correlation_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (project_id, invoice_type, scope_key) DO NOTHING
		RETURNING version, issued_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		inv.InvoiceNumber,
		inv.ProjectID,
		inv.FreelancerID,
		inv.CommissionerID,
		inv.InvoiceType,
		inv.ScopeKey,
		inv.TotalAmount,
		inv.Currency,
		inv.Status,
		inv.PaymentDetails.PlatformFee,
		inv.PaymentDetails.FreelancerAmount,
		inv.CorrelationID,
		inv.SentAt,
	).Scan(&inv.Version, &inv.IssuedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || common.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("invoice repository: create %w", err)
	}

	if len(inv.Milestones) == 0 {
		return nil
	}
	batch := common.NewBatchInserter(r.db,
		"INSERT INTO invoice_line_items (invoice_number, milestone_id, task_id, description, rate)", 5, 100)
	for i := range inv.Milestones {
		item := &inv.Milestones[i]
		item.InvoiceNumber = inv.InvoiceNumber
		if err := batch.Add(ctx, item.InvoiceNumber, item.MilestoneID, item.TaskID, item.Description, item.Rate); err != nil {
			return fmt.Errorf("invoice repository: line items %w", err)
		}
	}
	if err := batch.Flush(ctx); err != nil {
		return fmt.Errorf("invoice repository: line items %w", err)
	}
	return nil
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Invoice, error) {
	var row invoiceRow
	if err := sqlx.GetContext(ctx, r.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("invoice repository: get %w", err)
	}
	inv := row.toModel()
	if err := r.attachLineItems(ctx, []*models.Invoice{&inv}); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, number string) (*models.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1 FOR UPDATE`, number)
}

func (r *InvoiceRepository) FindByScope(ctx context.Context, projectID uuid.UUID, invoiceType, scopeKey string) (*models.Invoice, error) {
	return r.getOne(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE project_id = $1 AND invoice_type = $2 AND scope_key = $3
	`, projectID, invoiceType, scopeKey)
}

func (r *InvoiceRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE project_id = $1 ORDER BY issued_at, invoice_number`, projectID)
}

// List возвращает счета пользователя: фрилансер видит выставленные им, заказчик - адресованные ему.
func (r *InvoiceRepository) List(ctx context.Context, f domain.InvoiceFilter) ([]models.Invoice, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Role == models.RoleCommissioner {
		where = append(where, "commissioner_id = "+arg(f.UserID))
	} else {
		where = append(where, "freelancer_id = "+arg(f.UserID))
	}
	if f.ProjectID != nil {
		where = append(where, "project_id = "+arg(*f.ProjectID))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.InvoiceType != "" {
		where = append(where, "invoice_type = "+arg(f.InvoiceType))
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY issued_at DESC, invoice_number DESC`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	return r.list(ctx, query, args...)
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Invoice, error) {
	var rows []invoiceRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("invoice repository: list %w", err)
	}

	invoices := make([]models.Invoice, len(rows))
	ptrs := make([]*models.Invoice, len(rows))
	for i, row := range rows {
		invoices[i] = row.toModel()
		ptrs[i] = &invoices[i]
	}
	if err := r.attachLineItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return invoices, nil
}

// attachLineItems загружает строки для всех счетов одним запросом.
func (r *InvoiceRepository) attachLineItems(ctx context.Context, invoices []*models.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	numbers := make([]string, len(invoices))
	byNumber := make(map[string]*models.Invoice, len(invoices))
	for i, inv := range invoices {
		numbers[i] = inv.InvoiceNumber
		byNumber[inv.InvoiceNumber] = inv
	}

	var items []models.LineItem
	if err := sqlx.SelectContext(ctx, r.db, &items, `
		SELECT invoice_number, milestone_id, task_id, description, rate
		FROM invoice_line_items
		WHERE invoice_number = ANY($1)
		ORDER BY id
	`, pq.Array(numbers)); err != nil {
		return fmt.Errorf("invoice repository: line items %w", err)
	}

	for _, item := range items {
		if inv, ok := byNumber[item.InvoiceNumber]; ok {
			inv.Milestones = append(inv.Milestones, item)
		}
	}
	return nil
}

// Update сохраняет статус и платёжные поля счёта с проверкой версии.
func (r *InvoiceRepository) Update(ctx context.Context, inv *models.Invoice) error {
	err := r.db.QueryRowxContext(ctx, `
		UPDATE invoices
		SET status = $2, correlation_id = $3, platform_fee = $4, freelancer_amount = $5,
			sent_at = $6, paid_at = $7, version = version + 1, updated_at = NOW()
		WHERE invoice_number = $1 AND version = $8
		RETURNING version, updated_at
	`,
		inv.InvoiceNumber,
		inv.Status,
		inv.CorrelationID,
		inv.PaymentDetails.PlatformFee,
		inv.PaymentDetails.FreelancerAmount,
		inv.SentAt,
		inv.PaidAt,
		inv.Version,
	).Scan(&inv.Version, &inv.UpdatedAt)
	if err != nil {
		return common.VersionConflict(err)
	}
	return nil
}
