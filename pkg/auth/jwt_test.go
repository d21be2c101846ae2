package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manumu/auth-api/internal/domain/entity"
	apperrors "github.com/manumu/auth-api/internal/pkg/errors"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc, err := NewJWTService("test-session-secret-0123456789abcdef", 24)
	require.NoError(t, err)

	user := &entity.User{
		ID:    42,
		Name:  "Test",
		Email: "test@example.com",
		Role:  "USER",
	}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "Test", claims.Name)
	assert.Equal(t, "USER", claims.Role)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWTService_ExpiredToken(t *testing.T) {
	svc := &JWTService{secret: []byte("test-session-secret-0123456789abcdef"), expiry: -time.Hour}

	token, err := svc.GenerateToken(&entity.User{ID: 1, Email: "test@example.com"})
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrExpiredToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	issuer, err := NewJWTService("issuer-secret-0123456789abcdefghij", 24)
	require.NoError(t, err)
	verifier, err := NewJWTService("another-secret-0123456789abcdefghi", 24)
	require.NoError(t, err)

	token, err := issuer.GenerateToken(&entity.User{ID: 1, Email: "test@example.com"})
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestJWTService_GarbageToken(t *testing.T) {
	svc, err := NewJWTService("test-session-secret-0123456789abcdef", 24)
	require.NoError(t, err)

	_, err = svc.ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", 24)
	assert.Error(t, err)
}

func TestNewJWTService_DefaultExpiry(t *testing.T) {
	svc, err := NewJWTService("test-session-secret-0123456789abcdef", 0)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, svc.Expiry())
}
