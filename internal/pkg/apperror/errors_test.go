package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeInvalidInput:            http.StatusBadRequest,
		ErrCodeBudgetIntegrity:         http.StatusBadRequest,
		ErrCodeUnauthorized:            http.StatusUnauthorized,
		ErrCodeForbiddenUserType:       http.StatusForbidden,
		ErrCodeInvoiceNotFound:         http.StatusNotFound,
		ErrCodePaymentAlreadyProcessed: http.StatusConflict,
		ErrCodeInvalidStatusTransition: http.StatusConflict,
		ErrCodeInsufficientFunds:       http.StatusBadRequest,
		ErrCodePaymentFailed:           http.StatusBadGateway,
		ErrCodeServiceUnavailable:      http.StatusServiceUnavailable,
		ErrCodeGatewayTimeout:          http.StatusGatewayTimeout,
		ErrCodeInternal:                http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("service: %w", Wrap(errors.New("boom"), ErrCodePaymentFailed, "шлюз"))

	assert.True(t, errors.Is(wrapped, ErrPaymentFailed))
	assert.False(t, errors.Is(wrapped, ErrGatewayTimeout))
	assert.Equal(t, ErrCodePaymentFailed, CodeOf(wrapped))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
}

func TestAppError_Retryable(t *testing.T) {
	assert.True(t, ErrPaymentFailed.Retryable())
	assert.True(t, ErrGatewayTimeout.Retryable())
	assert.False(t, ErrPaymentAlreadyProcessed.Retryable())
	assert.False(t, ErrInsufficientFunds.Retryable())
}

func TestAppError_WithDetailsDoesNotMutateSentinel(t *testing.T) {
	base := New(ErrCodeBudgetIntegrity, "расхождение")
	withDetails := base.WithDetails("a", "b")

	assert.Empty(t, base.Details)
	assert.Equal(t, []string{"a", "b"}, withDetails.Details)
	assert.True(t, errors.Is(withDetails, base))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(ErrInvoiceNotFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", ErrProjectNotFound)))
	assert.False(t, IsNotFound(ErrForbidden))
}
