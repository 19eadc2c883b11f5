package valueobject

import (
	"testing"

	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceStatus_CanTransitionTo(t *testing.T) {
	all := []InvoiceStatus{
		InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusProcessing, InvoiceStatusPaid,
		InvoiceStatusOnHold, InvoiceStatusCancelled, InvoiceStatusOverdue,
	}
	allowed := map[[2]InvoiceStatus]bool{
		{InvoiceStatusDraft, InvoiceStatusSent}:      true,
		{InvoiceStatusSent, InvoiceStatusProcessing}: true,
		{InvoiceStatusProcessing, InvoiceStatusPaid}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]InvoiceStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTransition(t *testing.T) {
	t.Run("допустимое ребро", func(t *testing.T) {
		next, err := Transition("sent", "processing")
		require.NoError(t, err)
		assert.Equal(t, "processing", next)
	})

	t.Run("пропуск шага", func(t *testing.T) {
		_, err := Transition("draft", "paid")
		assert.ErrorIs(t, err, apperror.ErrInvalidStatusTransition)
	})

	t.Run("повторная оплата", func(t *testing.T) {
		_, err := Transition("paid", "paid")
		assert.ErrorIs(t, err, apperror.ErrPaymentAlreadyProcessed)
	})

	t.Run("неизвестный статус", func(t *testing.T) {
		_, err := Transition("archived", "sent")
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestTaskStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, TaskStatusInProgress.CanTransitionTo(TaskStatusReview))
	assert.True(t, TaskStatusReview.CanTransitionTo(TaskStatusDone))
	assert.True(t, TaskStatusReview.CanTransitionTo(TaskStatusInProgress))
	assert.False(t, TaskStatusDone.CanTransitionTo(TaskStatusReview))
	assert.False(t, TaskStatusTodo.CanTransitionTo(TaskStatusDone))
}

func TestNewInvoicingMethod(t *testing.T) {
	m, err := NewInvoicingMethod("completion")
	require.NoError(t, err)
	assert.Equal(t, InvoicingCompletion, m)

	_, err = NewInvoicingMethod("hourly")
	assert.Error(t, err)
}
