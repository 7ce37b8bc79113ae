package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbassistant/backend/internal/domain"
	"pbassistant/backend/internal/repository/memory"
)

func newAuth(t *testing.T) *authService {
	t.Helper()
	svc, err := NewAuthService(memory.NewUserRepository(), "test-secret", time.Hour)
	require.NoError(t, err)
	return svc.(*authService)
}

func TestNewAuthServiceRequiresSecret(t *testing.T) {
	_, err := NewAuthService(memory.NewUserRepository(), "", time.Hour)
	assert.Error(t, err)
}

func TestDevLoginUpsertsAndSigns(t *testing.T) {
	svc := newAuth(t)
	ctx := context.Background()

	token, user, err := svc.DevLogin(ctx, "", "runner-1", strPtr("Runner"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, user.Provider)
	assert.Equal(t, "Runner", *user.DisplayName)
	require.NotNil(t, user.LastLoginAt)

	uid, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)

	_, again, err := svc.DevLogin(ctx, DefaultProvider, "runner-1", nil)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID, "same identity maps to the same user")
	assert.Equal(t, "Runner", *again.DisplayName)
}

func TestDevLoginRequiresProviderUserID(t *testing.T) {
	_, _, err := newAuth(t).DevLogin(context.Background(), "dev", "  ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParseTokenRejects(t *testing.T) {
	svc := newAuth(t)

	_, err := svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewAuthService(memory.NewUserRepository(), "other-secret", time.Hour)
	require.NoError(t, err)
	foreign, _, err := other.DevLogin(context.Background(), "dev", "x", nil)
	require.NoError(t, err)
	_, err = svc.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.DevLogin(context.Background(), "dev", "y", nil)
	require.NoError(t, err)
	_, err = svc.ParseToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "expired")
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	svc := newAuth(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ParseToken(s)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
