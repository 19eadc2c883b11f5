package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

// Idempotency

type memIdempotency struct{ memRepos }

func (r memIdempotency) Claim(ctx context.Context, rec *models.IdempotencyRecord) (bool, *models.IdempotencyRecord, error) {
	defer r.lock()()
	key := idempotencyKey{rec.Operation, rec.IdempotencyKey}
	now := r.s.tick()
	if existing, ok := r.d().idempotency[key]; ok && !existing.ExpiresAt.Before(now) {
		return false, &existing, nil
	}
	rec.CreatedAt = now
	rec.ResourceID = nil
	rec.Response = nil
	r.d().idempotency[key] = *rec
	return true, nil, nil
}

func (r memIdempotency) Complete(ctx context.Context, operation, key, resourceID string, response []byte) error {
	defer r.lock()()
	k := idempotencyKey{operation, key}
	rec, ok := r.d().idempotency[k]
	if !ok {
		return nil
	}
	rec.ResourceID = &resourceID
	rec.Response = append([]byte(nil), response...)
	r.d().idempotency[k] = rec
	return nil
}

func (r memIdempotency) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	defer r.lock()()
	var n int64
	for k, rec := range r.d().idempotency {
		if rec.ExpiresAt.Before(now) {
			delete(r.d().idempotency, k)
			n++
		}
	}
	return n, nil
}

// Audit

type memAudit struct{ memRepos }

func (r memAudit) Record(ctx context.Context, e *models.AuditEntry) error {
	defer r.lock()()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = r.s.tick()
	r.d().audit = append(r.d().audit, *e)
	return nil
}

func (r memAudit) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditEntry, error) {
	defer r.lock()()
	var out []models.AuditEntry
	for _, e := range r.d().audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memAudit) CreateReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	defer r.lock()()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = models.ReconciliationOpen
	}
	rec.CreatedAt = r.s.tick()
	r.d().reconciliations = append(r.d().reconciliations, *rec)
	return nil
}

func (r memAudit) ListReconciliations(ctx context.Context, status string) ([]models.Reconciliation, error) {
	defer r.lock()()
	var out []models.Reconciliation
	for _, rec := range r.d().reconciliations {
		if status == "" || rec.Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Outbox

type memOutbox struct{ memRepos }

func (r memOutbox) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	defer r.lock()()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = models.OutboxStatusPending
	e.CreatedAt = r.s.tick()
	e.NextAttemptAt = time.Time{}
	r.d().outbox[e.ID] = *e
	return nil
}

func (r memOutbox) ClaimDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	defer r.lock()()
	var out []models.OutboxEvent
	for _, e := range r.d().outbox {
		if e.Status == models.OutboxStatusPending && !e.NextAttemptAt.After(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, limit, 0), nil
}

func (r memOutbox) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	defer r.lock()()
	e, ok := r.d().outbox[id]
	if !ok {
		return nil
	}
	e.Status = models.OutboxStatusDelivered
	e.Attempts++
	e.DeliveredAt = &at
	r.d().outbox[id] = e
	return nil
}

func (r memOutbox) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string, nextAttemptAt time.Time, dead bool) error {
	defer r.lock()()
	e, ok := r.d().outbox[id]
	if !ok {
		return nil
	}
	e.Status = models.OutboxStatusPending
	if dead {
		e.Status = models.OutboxStatusDead
	}
	e.Attempts = attempts
	e.LastError = &lastError
	e.NextAttemptAt = nextAttemptAt
	r.d().outbox[id] = e
	return nil
}

// Notifications

type memNotifications struct{ memRepos }

func (r memNotifications) Create(ctx context.Context, n *models.Notification) error {
	defer r.lock()()
	if n.EventID != nil {
		for _, existing := range r.d().notifications {
			if existing.EventID != nil && *existing.EventID == *n.EventID {
				*n = existing
				return nil
			}
		}
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = r.s.tick()
	r.d().notifications = append(r.d().notifications, *n)
	return nil
}

func (r memNotifications) List(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	defer r.lock()()
	var out []models.Notification
	for i := len(r.d().notifications) - 1; i >= 0; i-- {
		n := r.d().notifications[i]
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			out = append(out, n)
		}
	}
	return page(out, limit, offset), nil
}

func (r memNotifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	defer r.lock()()
	count := 0
	for _, n := range r.d().notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r memNotifications) MarkAsRead(ctx context.Context, id, userID uuid.UUID) error {
	defer r.lock()()
	for i, n := range r.d().notifications {
		if n.ID == id && n.UserID == userID {
			r.d().notifications[i].IsRead = true
			return nil
		}
	}
	return apperror.ErrNotificationNotFound
}

func (r memNotifications) MarkAllAsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	defer r.lock()()
	var updated int64
	for i, n := range r.d().notifications {
		if n.UserID == userID && !n.IsRead {
			r.d().notifications[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

// OutboxEvents возвращает все события outbox (для проверок в тестах).
func (s *MemStore) OutboxEvents() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.OutboxEvent, 0, len(s.data.outbox))
	for _, e := range s.data.outbox {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
