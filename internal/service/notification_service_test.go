package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/testutil"
)

func TestNotificationService(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewNotificationService(store.Notifications())
	ctx := context.Background()
	user := uuid.New()
	other := uuid.New()

	first, err := svc.CreateNotification(ctx, user, models.EventInvoiceSent, json.RawMessage(`{"invoiceNumber":"JD-000001"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"invoice.sent","data":{"invoiceNumber":"JD-000001"}}`, string(first.Payload))

	_, err = svc.CreateNotification(ctx, user, models.EventInvoicePaid, nil)
	require.NoError(t, err)
	_, err = svc.CreateNotification(ctx, other, models.EventInvoicePaid, nil)
	require.NoError(t, err)

	count, err := svc.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	items, err := svc.ListNotifications(ctx, user, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, string(items[0].Payload), models.EventInvoicePaid)

	err = svc.MarkAsRead(ctx, first.ID, other)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, svc.MarkAsRead(ctx, first.ID, user))
	unread, err := svc.ListNotifications(ctx, user, 10, 0, true)
	require.NoError(t, err)
	assert.Len(t, unread, 1)

	updated, err := svc.MarkAllAsRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	count, err = svc.CountUnread(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = svc.CountUnread(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNotificationService_DeliverEventOnce(t *testing.T) {
	store := testutil.NewMemStore()
	svc := NewNotificationService(store.Notifications())
	ctx := context.Background()
	event := models.OutboxEvent{
		ID:          uuid.New(),
		EventType:   models.EventInvoicePaid,
		RecipientID: uuid.New(),
		Payload:     []byte(`{"invoiceNumber":"JD-000002"}`),
	}

	first, err := svc.DeliverEvent(ctx, event)
	require.NoError(t, err)
	second, err := svc.DeliverEvent(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.EventInvoicePaid, second.EventType)
	require.NotNil(t, second.EventID)
	assert.Equal(t, event.ID, *second.EventID)

	count, err := svc.CountUnread(ctx, event.RecipientID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
