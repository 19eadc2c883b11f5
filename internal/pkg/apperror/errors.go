package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeInvoiceNotFound         ErrorCode = "INVOICE_NOT_FOUND"
	ErrCodeProjectNotFound         ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeTaskNotFound            ErrorCode = "TASK_NOT_FOUND"
	ErrCodeWalletNotFound          ErrorCode = "WALLET_NOT_FOUND"
	ErrCodeWithdrawalNotFound      ErrorCode = "WITHDRAWAL_NOT_FOUND"
	ErrCodeUnauthorized            ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden               ErrorCode = "FORBIDDEN"
	ErrCodeForbiddenUserType       ErrorCode = "FORBIDDEN_USER_TYPE"
	ErrCodeBadRequest              ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"
	ErrCodeValidation              ErrorCode = "VALIDATION_ERROR"
	ErrCodeBudgetIntegrity         ErrorCode = "BUDGET_INTEGRITY_VIOLATION"
	ErrCodeConflict                ErrorCode = "CONFLICT"
	ErrCodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodePaymentAlreadyProcessed ErrorCode = "PAYMENT_ALREADY_PROCESSED"
	ErrCodeAlreadyProcessed        ErrorCode = "ALREADY_PROCESSED"
	ErrCodeTasksNotApproved        ErrorCode = "TASKS_NOT_APPROVED"
	ErrCodeUnpaidInvoices          ErrorCode = "UNPAID_INVOICES"
	ErrCodePaymentNotEligible      ErrorCode = "PAYMENT_NOT_ELIGIBLE"
	ErrCodeIdempotencyKeyReused    ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	ErrCodeConcurrentModification  ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeInsufficientFunds       ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeRateLimited             ErrorCode = "RATE_LIMITED"
	ErrCodeInternal                ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError           ErrorCode = "DATABASE_ERROR"
	ErrCodePaymentUnresolved       ErrorCode = "PAYMENT_UNRESOLVED"
	ErrCodePaymentFailed           ErrorCode = "PAYMENT_FAILED"
	ErrCodeServiceUnavailable      ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout          ErrorCode = "GATEWAY_TIMEOUT"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Details    []string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обёрнутыми копиями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// Retryable сообщает, можно ли безопасно повторить запрос: деньги не двигались.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrCodePaymentFailed, ErrCodeServiceUnavailable, ErrCodeGatewayTimeout:
		return true
	}
	return false
}

// WithDetails возвращает копию ошибки с перечнем расхождений.
func (e *AppError) WithDetails(details ...string) *AppError {
	cp := *e
	cp.Details = append([]string(nil), details...)
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound, ErrCodeInvoiceNotFound, ErrCodeProjectNotFound, ErrCodeTaskNotFound,
		ErrCodeWalletNotFound, ErrCodeWithdrawalNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden, ErrCodeForbiddenUserType:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeInvalidInput, ErrCodeBudgetIntegrity,
		ErrCodeInsufficientFunds:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidStatusTransition, ErrCodePaymentAlreadyProcessed,
		ErrCodeAlreadyProcessed, ErrCodeTasksNotApproved, ErrCodeUnpaidInvoices, ErrCodePaymentNotEligible,
		ErrCodeIdempotencyKeyReused, ErrCodeConcurrentModification:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodePaymentFailed:
		return http.StatusBadGateway
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или INTERNAL_ERROR для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.HTTPStatus == http.StatusNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrInvoiceNotFound         = New(ErrCodeInvoiceNotFound, "счёт не найден")
	ErrProjectNotFound         = New(ErrCodeProjectNotFound, "проект не найден")
	ErrTaskNotFound            = New(ErrCodeTaskNotFound, "задача не найдена")
	ErrMilestoneNotFound       = New(ErrCodeNotFound, "этап не найден")
	ErrWalletNotFound          = New(ErrCodeWalletNotFound, "кошелёк не найден")
	ErrWithdrawalNotFound      = New(ErrCodeWithdrawalNotFound, "заявка на вывод не найдена")
	ErrUserNotFound            = New(ErrCodeNotFound, "пользователь не найден")
	ErrNotificationNotFound    = New(ErrCodeNotFound, "уведомление не найдено")
	ErrUnauthorized            = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden               = New(ErrCodeForbidden, "недостаточно прав")
	ErrForbiddenUserType       = New(ErrCodeForbiddenUserType, "операция недоступна для этого типа пользователя")
	ErrInvalidStatusTransition = New(ErrCodeInvalidStatusTransition, "недопустимый переход статуса")
	ErrPaymentAlreadyProcessed = New(ErrCodePaymentAlreadyProcessed, "оплата по счёту уже проведена")
	ErrAlreadyProcessed        = New(ErrCodeAlreadyProcessed, "операция уже выполнена")
	ErrTasksNotApproved        = New(ErrCodeTasksNotApproved, "не все задачи проекта приняты")
	ErrUnpaidInvoices          = New(ErrCodeUnpaidInvoices, "по проекту есть неоплаченные счета")
	ErrPaymentNotEligible      = New(ErrCodePaymentNotEligible, "проект не допускает оплату")
	ErrIdempotencyKeyReused    = New(ErrCodeIdempotencyKeyReused, "ключ идемпотентности уже использован с другим запросом")
	ErrConcurrentModification  = New(ErrCodeConcurrentModification, "данные изменены параллельным запросом, повторите попытку")
	ErrInsufficientFunds       = New(ErrCodeInsufficientFunds, "недостаточно средств")
	ErrPaymentFailed           = New(ErrCodePaymentFailed, "платёжный шлюз отклонил операцию, повторите попытку")
	ErrGatewayTimeout          = New(ErrCodeGatewayTimeout, "платёжный шлюз не ответил вовремя")
	ErrServiceUnavailable      = New(ErrCodeServiceUnavailable, "сервис временно недоступен")
	ErrPaymentUnresolved       = New(ErrCodePaymentUnresolved, "платёж требует ручной сверки")
)

// InvalidInput - короткий конструктор для ошибок входных данных.
func InvalidInput(message string) *AppError {
	return New(ErrCodeInvalidInput, message)
}
