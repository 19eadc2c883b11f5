package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/domain/ledger"
	"github.com/ignatzorin/freelance-payments/internal/domain/repository"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// SeedUser создаёт пользователя с заданной ролью.
func SeedUser(t *testing.T, store *MemStore, role, name string) models.User {
	t.Helper()
	u := models.User{
		ID:          uuid.New(),
		DisplayName: name,
		Email:       uuid.NewString() + "@example.com",
		Role:        role,
	}
	require.NoError(t, store.Users().Create(context.Background(), &u))
	return u
}

// Wallet возвращает кошелёк или пустой, если зачислений ещё не было.
func Wallet(t *testing.T, store *MemStore, userID uuid.UUID, currency string) models.Wallet {
	t.Helper()
	w, err := store.Wallets().Get(context.Background(), userID, currency)
	if err != nil {
		return *models.NewWallet(userID, currency)
	}
	return *w
}

// SeedBalance зачисляет сумму на кошелёк напрямую через ledger.
func SeedBalance(t *testing.T, store *MemStore, userID uuid.UUID, currency, amount string) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx repository.Repositories) error {
		w, err := tx.Wallets().GetOrCreateForUpdate(ctx, userID, currency)
		if err != nil {
			return err
		}
		out := ledger.Credit(*w, decimal.RequireFromString(amount))
		require.True(t, out.OK)
		return tx.Wallets().Save(ctx, &out.Wallet)
	})
	require.NoError(t, err)
}
