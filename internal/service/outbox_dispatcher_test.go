package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

type recordedPush struct {
	userID uuid.UUID
	event  string
}

type fakePusher struct {
	mu     sync.Mutex
	pushes []recordedPush
	err    error
}

func (p *fakePusher) Push(userID uuid.UUID, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes = append(p.pushes, recordedPush{userID: userID, event: event})
	return p.err
}

func TestOutboxDispatcher_DeliversEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, tasks := h.milestoneProject(t, "800")
	inv := h.readyMilestoneInvoice(t, tasks[0].ID)
	_, err := h.payments.Execute(ctx, h.commissioner, inv.InvoiceNumber, "")
	require.NoError(t, err)

	pending := len(h.store.OutboxEvents())
	require.NotZero(t, pending)

	pusher := &fakePusher{err: errors.New("нет соединений")}
	d := NewOutboxDispatcher(h.store, pusher, DispatcherConfig{BatchSize: 100})
	delivered, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, pending, delivered)
	assert.Len(t, pusher.pushes, pending)

	for _, e := range h.store.OutboxEvents() {
		assert.Equal(t, models.OutboxStatusDelivered, e.Status, e.EventType)
		assert.Equal(t, 1, e.Attempts)
	}

	notifications := NewNotificationService(h.store.Notifications())
	items, err := notifications.ListNotifications(ctx, h.freelancer.UserID, 100, 0, false)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	var paid bool
	for _, n := range items {
		var payload struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(n.Payload, &payload))
		if payload.Event == models.EventInvoicePaid {
			paid = true
		}
	}
	assert.True(t, paid)

	again, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestOutboxDispatcher_BrokenPayloadGoesDead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	event := &models.OutboxEvent{
		EventType:   models.EventInvoiceSent,
		RecipientID: h.commissioner.UserID,
		Payload:     types.JSONText(`{`),
	}
	require.NoError(t, h.store.Outbox().Enqueue(ctx, event))

	d := NewOutboxDispatcher(h.store, nil, DispatcherConfig{MaxAttempts: 2, BaseBackoff: time.Minute})

	delivered, err := d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)

	events := h.store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.OutboxStatusPending, events[0].Status)
	assert.Equal(t, 1, events[0].Attempts)
	require.NotNil(t, events[0].LastError)

	// до истечения паузы событие не забирается повторно
	delivered, err = d.DispatchOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Equal(t, 1, h.store.OutboxEvents()[0].Attempts)

	d.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	_, err = d.DispatchOnce(ctx)
	require.NoError(t, err)

	events = h.store.OutboxEvents()
	assert.Equal(t, models.OutboxStatusDead, events[0].Status)
	assert.Equal(t, 2, events[0].Attempts)

	count, err := NewNotificationService(h.store.Notifications()).CountUnread(ctx, h.commissioner.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOutboxDispatcher_Backoff(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil, DispatcherConfig{BaseBackoff: time.Second})
	assert.Equal(t, time.Second, d.backoff(1))
	assert.Equal(t, 4*time.Second, d.backoff(3))
	assert.Equal(t, maxOutboxBackoff, d.backoff(30))
}

func TestOutboxDispatcher_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	d := NewOutboxDispatcher(h.store, nil, DispatcherConfig{PollInterval: 10 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
