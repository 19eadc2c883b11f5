package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	userID := uuid.New()

	token, exp, err := m.Issue(userID, models.RoleCommissioner)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	gotID, role, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, models.RoleCommissioner, role)
}

func TestTokenManager_Rejects(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)

	_, _, err := m.Issue(uuid.New(), "admin")
	assert.Error(t, err)

	other := NewTokenManager("other-secret", time.Minute)
	token, _, err := other.Issue(uuid.New(), models.RoleFreelancer)
	require.NoError(t, err)
	_, _, err = m.ParseAccess(token)
	assert.Error(t, err)

	expired := NewTokenManager("secret", -time.Minute)
	token, _, err = expired.Issue(uuid.New(), models.RoleFreelancer)
	require.NoError(t, err)
	_, _, err = m.ParseAccess(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
