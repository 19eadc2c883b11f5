package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/gateway"
	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/testutil"
)

func TestRequestWithdrawal_Paid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedBalance(t, h.store, h.freelancer.UserID, "USD", "500")

	res, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("200")})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusPaid, res.Withdrawal.Status)
	require.NotNil(t, res.Withdrawal.GatewayReference)
	require.Len(t, res.Transactions, 2)
	assert.Equal(t, models.TransactionTypeWithdrawalHold, res.Transactions[0].Type)
	assert.Equal(t, models.TransactionTypeWithdrawal, res.Transactions[1].Type)

	w := h.wallet(t)
	assert.True(t, dec("300").Equal(w.AvailableBalance))
	assert.True(t, dec("200").Equal(w.TotalWithdrawn))
	assert.True(t, w.PendingWithdrawals.IsZero())
	assert.Equal(t, 0, w.Holds)
	assert.True(t, dec("500").Equal(w.LifetimeEarnings))
}

func TestRequestWithdrawal_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedBalance(t, h.store, h.freelancer.UserID, "USD", "100")
	before := h.wallet(t)

	_, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("100.01")})
	requireCode(t, err, apperror.ErrCodeInsufficientFunds)

	after := h.wallet(t)
	assert.True(t, before.AvailableBalance.Equal(after.AvailableBalance))
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, h.gw.Payouts())

	withdrawals, err := h.wallets.ListWithdrawals(ctx, h.freelancer, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
}

func TestRequestWithdrawal_PayoutFailureRollsBackAndAllowsRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code apperror.ErrorCode
	}{
		{"declined", gateway.ErrDeclined, apperror.ErrCodePaymentFailed},
		{"timeout", context.DeadlineExceeded, apperror.ErrCodeGatewayTimeout},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			testutil.SeedBalance(t, h.store, h.freelancer.UserID, "USD", "500")
			h.gw.FailPayouts(tc.err)
			id := uuid.New()

			_, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("200"), WithdrawalID: &id})
			appErr := requireCode(t, err, tc.code)
			assert.True(t, appErr.Retryable())

			w := h.wallet(t)
			assert.True(t, dec("500").Equal(w.AvailableBalance))
			assert.True(t, w.PendingWithdrawals.IsZero())
			assert.Equal(t, 0, w.Holds)
			withdrawals, err := h.wallets.ListWithdrawals(ctx, h.freelancer, 0, 0)
			require.NoError(t, err)
			assert.Empty(t, withdrawals)

			// тот же идентификатор снова уходит в шлюз
			res, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("200"), WithdrawalID: &id})
			require.NoError(t, err)
			assert.Equal(t, models.WithdrawalStatusPaid, res.Withdrawal.Status)
			assert.Len(t, h.gw.Payouts(), 2)

			w = h.wallet(t)
			assert.True(t, dec("300").Equal(w.AvailableBalance))
			assert.True(t, dec("200").Equal(w.TotalWithdrawn))
		})
	}
}

func TestRequestWithdrawal_SameIDIsReplayed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedBalance(t, h.store, h.freelancer.UserID, "USD", "500")
	id := uuid.New()

	first, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("50"), WithdrawalID: &id})
	require.NoError(t, err)
	second, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("50"), WithdrawalID: &id})
	require.NoError(t, err)

	assert.Equal(t, first.Withdrawal.ID, second.Withdrawal.ID)
	assert.Len(t, h.gw.Payouts(), 1)
	assert.True(t, dec("450").Equal(h.wallet(t).AvailableBalance))

	_, err = h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("60"), WithdrawalID: &id})
	requireCode(t, err, apperror.ErrCodeIdempotencyKeyReused)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.wallets.RequestWithdrawal(ctx, h.commissioner, WithdrawalInput{Amount: dec("10")})
	requireCode(t, err, apperror.ErrCodeForbiddenUserType)

	_, err = h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("-1")})
	requireCode(t, err, apperror.ErrCodeInvalidInput)

	_, err = h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("0.50")})
	requireCode(t, err, apperror.ErrCodeInvalidInput)
}

func TestGetWallet_EmptyBeforeFirstCredit(t *testing.T) {
	h := newHarness(t)
	w, err := h.wallets.GetWallet(context.Background(), h.freelancer, "")
	require.NoError(t, err)
	assert.Equal(t, "USD", w.Currency)
	assert.True(t, w.AvailableBalance.IsZero())
	assert.True(t, w.LifetimeEarnings.IsZero())
}

func TestGetWithdrawal_OwnerOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testutil.SeedBalance(t, h.store, h.freelancer.UserID, "USD", "100")
	res, err := h.wallets.RequestWithdrawal(ctx, h.freelancer, WithdrawalInput{Amount: dec("10")})
	require.NoError(t, err)

	got, err := h.wallets.GetWithdrawal(ctx, h.freelancer, res.Withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Withdrawal.ID, got.ID)

	_, err = h.wallets.GetWithdrawal(ctx, h.commissioner, res.Withdrawal.ID)
	requireCode(t, err, apperror.ErrCodeForbidden)
}
