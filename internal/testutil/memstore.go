// Package testutil содержит хранилище в памяти и заглушки для тестов сервисов.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

type walletKey struct {
	userID   uuid.UUID
	currency string
}

type idempotencyKey struct {
	operation string
	key       string
}

type memData struct {
	users           map[uuid.UUID]models.User
	emails          map[string]uuid.UUID
	projects        map[uuid.UUID]models.Project
	milestones      map[uuid.UUID]models.Milestone
	tasks           map[uuid.UUID]models.Task
	invoices        map[string]models.Invoice
	sequences       map[string]int64
	wallets         map[walletKey]models.Wallet
	transactions    []models.Transaction
	withdrawals     map[uuid.UUID]models.Withdrawal
	idempotency     map[idempotencyKey]models.IdempotencyRecord
	audit           []models.AuditEntry
	reconciliations []models.Reconciliation
	outbox          map[uuid.UUID]models.OutboxEvent
	notifications   []models.Notification
}

func newMemData() *memData {
	return &memData{
		users:       map[uuid.UUID]models.User{},
		emails:      map[string]uuid.UUID{},
		projects:    map[uuid.UUID]models.Project{},
		milestones:  map[uuid.UUID]models.Milestone{},
		tasks:       map[uuid.UUID]models.Task{},
		invoices:    map[string]models.Invoice{},
		sequences:   map[string]int64{},
		wallets:     map[walletKey]models.Wallet{},
		withdrawals: map[uuid.UUID]models.Withdrawal{},
		idempotency: map[idempotencyKey]models.IdempotencyRecord{},
		outbox:      map[uuid.UUID]models.OutboxEvent{},
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (d *memData) clone() *memData {
	return &memData{
		users:           copyMap(d.users),
		emails:          copyMap(d.emails),
		projects:        copyMap(d.projects),
		milestones:      copyMap(d.milestones),
		tasks:           copyMap(d.tasks),
		invoices:        copyMap(d.invoices),
		sequences:       copyMap(d.sequences),
		wallets:         copyMap(d.wallets),
		transactions:    append([]models.Transaction(nil), d.transactions...),
		withdrawals:     copyMap(d.withdrawals),
		idempotency:     copyMap(d.idempotency),
		audit:           append([]models.AuditEntry(nil), d.audit...),
		reconciliations: append([]models.Reconciliation(nil), d.reconciliations...),
		outbox:          copyMap(d.outbox),
		notifications:   append([]models.Notification(nil), d.notifications...),
	}
}

// MemStore реализует repository.Store в памяти.
// Транзакции сериализуются общим мьютексом, ошибка fn откатывает снимок данных,
// что повторяет поведение блокировок и отката в PostgreSQL.
type MemStore struct {
	mu         sync.Mutex
	data       *memData
	clock      time.Time
	failCommit error
	failLookup error
	txCount    int
}

var _ repository.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		data:  newMemData(),
		clock: time.Now().UTC(),
	}
}

// tick возвращает строго возрастающее время, чтобы сортировка по created_at была стабильной.
func (s *MemStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// FailNextCommit заставляет следующую транзакцию откатиться с err после успешного fn.
func (s *MemStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = err
}

// FailNextLookup заставляет следующий поиск счёта по объёму работ вернуть err.
func (s *MemStore) FailNextLookup(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLookup = err
}

// TxCount - число зафиксированных транзакций.
func (s *MemStore) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(ctx, memRepos{s: s, tx: true})
	if err == nil && s.failCommit != nil {
		err = fmt.Errorf("commit transaction: %w", s.failCommit)
		s.failCommit = nil
	}
	if err != nil {
		s.data = snapshot
		return err
	}
	s.txCount++
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemStore) repos() memRepos {
	return memRepos{s: s}
}

func (s *MemStore) Users() repository.UserRepository {
	return memUsers{s.repos()}
}

func (s *MemStore) Projects() repository.ProjectRepository {
	return memProjects{s.repos()}
}

func (s *MemStore) Tasks() repository.TaskRepository {
	return memTasks{s.repos()}
}

func (s *MemStore) Invoices() repository.InvoiceRepository {
	return memInvoices{s.repos()}
}

func (s *MemStore) Wallets() repository.WalletRepository {
	return memWallets{s.repos()}
}

func (s *MemStore) Transactions() repository.TransactionRepository {
	return memTransactions{s.repos()}
}

func (s *MemStore) Withdrawals() repository.WithdrawalRepository {
	return memWithdrawals{s.repos()}
}

func (s *MemStore) Idempotency() repository.IdempotencyRepository {
	return memIdempotency{s.repos()}
}

func (s *MemStore) Audit() repository.AuditRepository {
	return memAudit{s.repos()}
}

func (s *MemStore) Outbox() repository.OutboxRepository {
	return memOutbox{s.repos()}
}

func (s *MemStore) Notifications() repository.NotificationRepository {
	return memNotifications{s.repos()}
}

// memRepos - репозитории одного вызова. Вне транзакции каждый метод берёт мьютекс сам.
type memRepos struct {
	s  *MemStore
	tx bool
}

func (r memRepos) lock() func() {
	if r.tx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r memRepos) d() *memData {
	return r.s.data
}

func (r memRepos) Users() repository.UserRepository {
	return memUsers{r}
}

func (r memRepos) Projects() repository.ProjectRepository {
	return memProjects{r}
}

func (r memRepos) Tasks() repository.TaskRepository {
	return memTasks{r}
}

func (r memRepos) Invoices() repository.InvoiceRepository {
	return memInvoices{r}
}

func (r memRepos) Wallets() repository.WalletRepository {
	return memWallets{r}
}

func (r memRepos) Transactions() repository.TransactionRepository {
	return memTransactions{r}
}

func (r memRepos) Withdrawals() repository.WithdrawalRepository {
	return memWithdrawals{r}
}

func (r memRepos) Idempotency() repository.IdempotencyRepository {
	return memIdempotency{r}
}

func (r memRepos) Audit() repository.AuditRepository {
	return memAudit{r}
}

func (r memRepos) Outbox() repository.OutboxRepository {
	return memOutbox{r}
}

func (r memRepos) Notifications() repository.NotificationRepository {
	return memNotifications{r}
}

// Users

type memUsers struct{ memRepos }

func (r memUsers) Create(ctx context.Context, u *models.User) error {
	defer r.lock()()
	if _, ok := r.d().emails[u.Email]; ok {
		return apperror.New(apperror.ErrCodeConflict, "пользователь с таким email уже существует")
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = r.s.tick()
	r.d().users[u.ID] = *u
	r.d().emails[u.Email] = u.ID
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	defer r.lock()()
	u, ok := r.d().users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	return &u, nil
}

// Projects

type memProjects struct{ memRepos }

func (r memProjects) Create(ctx context.Context, p *models.Project) error {
	defer r.lock()()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Version = 1
	p.CreatedAt = r.s.tick()
	p.UpdatedAt = p.CreatedAt
	r.d().projects[p.ID] = *p
	return nil
}

func (r memProjects) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	defer r.lock()()
	p, ok := r.d().projects[id]
	if !ok {
		return nil, apperror.ErrProjectNotFound
	}
	return &p, nil
}

func (r memProjects) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return r.GetByID(ctx, id)
}

func (r memProjects) Update(ctx context.Context, p *models.Project) error {
	defer r.lock()()
	current, ok := r.d().projects[p.ID]
	if !ok || current.Version != p.Version {
		return apperror.ErrConcurrentModification
	}
	current.FreelancerID = p.FreelancerID
	current.Title = p.Title
	current.Status = p.Status
	current.ActivatedAt = p.ActivatedAt
	current.CompletedAt = p.CompletedAt
	current.Version++
	current.UpdatedAt = r.s.tick()
	r.d().projects[p.ID] = current
	p.Version = current.Version
	p.UpdatedAt = current.UpdatedAt
	return nil
}

func (r memProjects) CreateMilestone(ctx context.Context, m *models.Milestone) error {
	defer r.lock()()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.d().milestones[m.ID] = *m
	return nil
}

func (r memProjects) GetMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	defer r.lock()()
	m, ok := r.d().milestones[id]
	if !ok {
		return nil, apperror.ErrMilestoneNotFound
	}
	return &m, nil
}

func (r memProjects) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	defer r.lock()()
	var out []models.Milestone
	for _, m := range r.d().milestones {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// Tasks

type memTasks struct{ memRepos }

func (r memTasks) Create(ctx context.Context, t *models.Task) error {
	defer r.lock()()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = r.s.tick()
	t.UpdatedAt = t.CreatedAt
	r.d().tasks[t.ID] = *t
	return nil
}

func (r memTasks) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	defer r.lock()()
	t, ok := r.d().tasks[id]
	if !ok {
		return nil, apperror.ErrTaskNotFound
	}
	return &t, nil
}

func (r memTasks) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return r.GetByID(ctx, id)
}

func (r memTasks) Update(ctx context.Context, t *models.Task) error {
	defer r.lock()()
	current, ok := r.d().tasks[t.ID]
	if !ok {
		return apperror.ErrTaskNotFound
	}
	current.Status = t.Status
	current.Approved = t.Approved
	current.Completed = t.Completed
	current.Version = t.Version
	current.SubmittedAt = t.SubmittedAt
	current.ApprovedAt = t.ApprovedAt
	current.UpdatedAt = r.s.tick()
	r.d().tasks[t.ID] = current
	t.UpdatedAt = current.UpdatedAt
	return nil
}

func (r memTasks) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	defer r.lock()()
	var out []models.Task
	for _, t := range r.d().tasks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
