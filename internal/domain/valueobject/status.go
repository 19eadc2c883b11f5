package valueobject

import (
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft      InvoiceStatus = models.InvoiceStatusDraft
	InvoiceStatusSent       InvoiceStatus = models.InvoiceStatusSent
	InvoiceStatusProcessing InvoiceStatus = models.InvoiceStatusProcessing
	InvoiceStatusPaid       InvoiceStatus = models.InvoiceStatusPaid
	InvoiceStatusOnHold     InvoiceStatus = models.InvoiceStatusOnHold
	InvoiceStatusCancelled  InvoiceStatus = models.InvoiceStatusCancelled
	InvoiceStatusOverdue    InvoiceStatus = models.InvoiceStatusOverdue
)

// Единственные допустимые рёбра жизненного цикла счёта.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:      {InvoiceStatusSent},
	InvoiceStatusSent:       {InvoiceStatusProcessing},
	InvoiceStatusProcessing: {InvoiceStatusPaid},
}

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusProcessing, InvoiceStatusPaid,
		InvoiceStatusOnHold, InvoiceStatusCancelled, InvoiceStatusOverdue:
		return true
	}
	return false
}

func (s InvoiceStatus) CanTransitionTo(newStatus InvoiceStatus) bool {
	for _, status := range invoiceTransitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewInvoiceStatus(status string) (InvoiceStatus, error) {
	s := InvoiceStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус счёта")
	}
	return s, nil
}

// Transition проверяет переход счёта и возвращает новый статус.
// Уже оплаченный счёт даёт PAYMENT_ALREADY_PROCESSED, остальные запрещённые рёбра - INVALID_STATUS_TRANSITION.
func Transition(from, to string) (string, error) {
	current, err := NewInvoiceStatus(from)
	if err != nil {
		return "", err
	}
	target, err := NewInvoiceStatus(to)
	if err != nil {
		return "", err
	}
	if !current.CanTransitionTo(target) {
		if current == InvoiceStatusPaid && target == InvoiceStatusPaid {
			return "", apperror.ErrPaymentAlreadyProcessed
		}
		return "", apperror.ErrInvalidStatusTransition.WithDetails(from + " -> " + to)
	}
	return string(target), nil
}

type InvoiceType string

const (
	InvoiceTypeMilestone         InvoiceType = models.InvoiceTypeMilestone
	InvoiceTypeCompletionUpfront InvoiceType = models.InvoiceTypeCompletionUpfront
	InvoiceTypeCompletionManual  InvoiceType = models.InvoiceTypeCompletionManual
	InvoiceTypeCompletionFinal   InvoiceType = models.InvoiceTypeCompletionFinal
)

func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeMilestone, InvoiceTypeCompletionUpfront, InvoiceTypeCompletionManual, InvoiceTypeCompletionFinal:
		return true
	}
	return false
}

type InvoicingMethod string

const (
	InvoicingMilestone  InvoicingMethod = models.InvoicingMilestone
	InvoicingCompletion InvoicingMethod = models.InvoicingCompletion
)

func NewInvoicingMethod(method string) (InvoicingMethod, error) {
	m := InvoicingMethod(method)
	switch m {
	case InvoicingMilestone, InvoicingCompletion:
		return m, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректный способ выставления счетов")
}

type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = models.ProjectStatusPending
	ProjectStatusActive    ProjectStatus = models.ProjectStatusActive
	ProjectStatusCompleted ProjectStatus = models.ProjectStatusCompleted
	ProjectStatusCancelled ProjectStatus = models.ProjectStatusCancelled
)

func (s ProjectStatus) CanTransitionTo(newStatus ProjectStatus) bool {
	transitions := map[ProjectStatus][]ProjectStatus{
		ProjectStatusPending: {ProjectStatusActive, ProjectStatusCancelled},
		ProjectStatusActive:  {ProjectStatusCompleted, ProjectStatusCancelled},
	}
	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = models.TaskStatusTodo
	TaskStatusInProgress TaskStatus = models.TaskStatusInProgress
	TaskStatusReview     TaskStatus = models.TaskStatusReview
	TaskStatusDone       TaskStatus = models.TaskStatusDone
)

// CanTransitionTo для задач: отправка на проверку из работы, принятие или возврат из проверки.
func (s TaskStatus) CanTransitionTo(newStatus TaskStatus) bool {
	switch newStatus {
	case TaskStatusReview:
		return s == TaskStatusTodo || s == TaskStatusInProgress
	case TaskStatusDone, TaskStatusInProgress:
		return s == TaskStatusReview
	}
	return false
}
