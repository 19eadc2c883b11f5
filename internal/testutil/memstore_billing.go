package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

func cloneInvoice(inv models.Invoice) models.Invoice {
	inv.Milestones = append([]models.LineItem(nil), inv.Milestones...)
	return inv
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Invoices

type memInvoices struct{ memRepos }

func (r memInvoices) NextNumber(ctx context.Context, prefix string) (string, error) {
	defer r.lock()()
	r.d().sequences[prefix]++
	return fmt.Sprintf("%s-%06d", prefix, r.d().sequences[prefix]), nil
}

func (r memInvoices) Create(ctx context.Context, inv *models.Invoice) error {
	defer r.lock()()
	if _, ok := r.d().invoices[inv.InvoiceNumber]; ok {
		return repository.ErrAlreadyExists
	}
	for _, existing := range r.d().invoices {
		if existing.ProjectID == inv.ProjectID && existing.InvoiceType == inv.InvoiceType && existing.ScopeKey == inv.ScopeKey {
			return repository.ErrAlreadyExists
		}
	}
	for i := range inv.Milestones {
		inv.Milestones[i].InvoiceNumber = inv.InvoiceNumber
	}
	inv.Version = 1
	inv.IssuedAt = r.s.tick()
	inv.UpdatedAt = inv.IssuedAt
	r.d().invoices[inv.InvoiceNumber] = cloneInvoice(*inv)
	return nil
}

func (r memInvoices) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	defer r.lock()()
	inv, ok := r.d().invoices[number]
	if !ok {
		return nil, apperror.ErrInvoiceNotFound
	}
	inv = cloneInvoice(inv)
	return &inv, nil
}

func (r memInvoices) GetForUpdate(ctx context.Context, number string) (*models.Invoice, error) {
	return r.GetByNumber(ctx, number)
}

func (r memInvoices) FindByScope(ctx context.Context, projectID uuid.UUID, invoiceType, scopeKey string) (*models.Invoice, error) {
	defer r.lock()()
	if err := r.s.failLookup; err != nil {
		r.s.failLookup = nil
		return nil, err
	}
	for _, inv := range r.d().invoices {
		if inv.ProjectID == projectID && inv.InvoiceType == invoiceType && inv.ScopeKey == scopeKey {
			inv = cloneInvoice(inv)
			return &inv, nil
		}
	}
	return nil, apperror.ErrInvoiceNotFound
}

func (r memInvoices) filter(keep func(models.Invoice) bool) []models.Invoice {
	var out []models.Invoice
	for _, inv := range r.d().invoices {
		if keep(inv) {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].InvoiceNumber < out[j].InvoiceNumber
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out
}

func (r memInvoices) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Invoice, error) {
	defer r.lock()()
	return r.filter(func(inv models.Invoice) bool { return inv.ProjectID == projectID }), nil
}

func (r memInvoices) List(ctx context.Context, f repository.InvoiceFilter) ([]models.Invoice, error) {
	defer r.lock()()
	out := r.filter(func(inv models.Invoice) bool {
		if f.Role == models.RoleCommissioner {
			if inv.CommissionerID != f.UserID {
				return false
			}
		} else if inv.FreelancerID != f.UserID {
			return false
		}
		if f.ProjectID != nil && inv.ProjectID != *f.ProjectID {
			return false
		}
		if f.Status != "" && inv.Status != f.Status {
			return false
		}
		return f.InvoiceType == "" || inv.InvoiceType == f.InvoiceType
	})
	// новые сверху
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r memInvoices) Update(ctx context.Context, inv *models.Invoice) error {
	defer r.lock()()
	current, ok := r.d().invoices[inv.InvoiceNumber]
	if !ok || current.Version != inv.Version {
		return apperror.ErrConcurrentModification
	}
	current.Status = inv.Status
	current.CorrelationID = inv.CorrelationID
	current.PaymentDetails = inv.PaymentDetails
	current.SentAt = inv.SentAt
	current.PaidAt = inv.PaidAt
	current.Version++
	current.UpdatedAt = r.s.tick()
	r.d().invoices[inv.InvoiceNumber] = current
	inv.Version = current.Version
	inv.UpdatedAt = current.UpdatedAt
	return nil
}

// Wallets

type memWallets struct{ memRepos }

func (r memWallets) Get(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	defer r.lock()()
	w, ok := r.d().wallets[walletKey{userID, currency}]
	if !ok {
		return nil, apperror.ErrWalletNotFound
	}
	return &w, nil
}

func (r memWallets) GetOrCreateForUpdate(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	defer r.lock()()
	key := walletKey{userID, currency}
	w, ok := r.d().wallets[key]
	if !ok {
		w = *models.NewWallet(userID, currency)
		w.Version = 1
		w.UpdatedAt = r.s.tick()
		r.d().wallets[key] = w
	}
	return &w, nil
}

func (r memWallets) Save(ctx context.Context, w *models.Wallet) error {
	defer r.lock()()
	key := walletKey{w.UserID, w.Currency}
	current, ok := r.d().wallets[key]
	if !ok || current.Version != w.Version {
		return apperror.ErrConcurrentModification
	}
	if w.AvailableBalance.IsNegative() || w.PendingWithdrawals.IsNegative() {
		return apperror.ErrInsufficientFunds
	}
	saved := *w
	saved.Version++
	saved.UpdatedAt = r.s.tick()
	r.d().wallets[key] = saved
	w.Version = saved.Version
	w.UpdatedAt = saved.UpdatedAt
	return nil
}

// Transactions

type memTransactions struct{ memRepos }

func (r memTransactions) Append(ctx context.Context, t *models.Transaction) error {
	defer r.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = r.s.tick()
	r.d().transactions = append(r.d().transactions, *t)
	return nil
}

func (r memTransactions) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	defer r.lock()()
	for _, t := range r.d().transactions {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, apperror.New(apperror.ErrCodeNotFound, "транзакция не найдена")
}

func (r memTransactions) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	defer r.lock()()
	var out []models.Transaction
	for i := len(r.d().transactions) - 1; i >= 0; i-- {
		if t := r.d().transactions[i]; t.UserID == userID {
			out = append(out, t)
		}
	}
	return page(out, limit, offset), nil
}

func (r memTransactions) ListByInvoice(ctx context.Context, number string) ([]models.Transaction, error) {
	defer r.lock()()
	var out []models.Transaction
	for _, t := range r.d().transactions {
		if t.InvoiceNumber != nil && *t.InvoiceNumber == number {
			out = append(out, t)
		}
	}
	return out, nil
}

// Withdrawals

type memWithdrawals struct{ memRepos }

func (r memWithdrawals) Create(ctx context.Context, w *models.Withdrawal) error {
	defer r.lock()()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if _, ok := r.d().withdrawals[w.ID]; ok {
		return apperror.ErrAlreadyProcessed
	}
	w.CreatedAt = r.s.tick()
	r.d().withdrawals[w.ID] = *w
	return nil
}

func (r memWithdrawals) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	defer r.lock()()
	w, ok := r.d().withdrawals[id]
	if !ok {
		return nil, apperror.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (r memWithdrawals) Update(ctx context.Context, w *models.Withdrawal) error {
	defer r.lock()()
	current, ok := r.d().withdrawals[w.ID]
	if !ok {
		return apperror.ErrWithdrawalNotFound
	}
	current.Status = w.Status
	current.GatewayReference = w.GatewayReference
	current.FailureReason = w.FailureReason
	current.ProcessedAt = w.ProcessedAt
	r.d().withdrawals[w.ID] = current
	return nil
}

func (r memWithdrawals) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	defer r.lock()()
	var out []models.Withdrawal
	for _, w := range r.d().withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}
