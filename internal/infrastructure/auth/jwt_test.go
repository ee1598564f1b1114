package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payops/payops/internal/shared/config"
)

func TestJWTService_RoundTrip(t *testing.T) {
	s := NewJWTService(config.JWTConfig{Secret: "s3cret", Issuer: "payops", AccessExpMinutes: 5})

	token, err := s.Generate("ops@example.test", "operator", "org_1", TokenTypeAccess)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.test", claims.Actor())
	assert.Equal(t, "operator", claims.Role)
	assert.Equal(t, "org_1", claims.OrganizationID)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)
	require.NotNil(t, claims.ExpiresAt)
}

func TestJWTService_ServiceTokenHasNoExpiry(t *testing.T) {
	s := NewJWTService(config.JWTConfig{Secret: "s3cret"})
	token, err := s.Generate("gateway", "operator", "", TokenTypeService)
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
	assert.Equal(t, 60, s.AccessExpMinutes())
}

func TestJWTService_Rejects(t *testing.T) {
	s := NewJWTService(config.JWTConfig{Secret: "s3cret", Issuer: "payops"})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "other", Issuer: "payops"})
		token, err := other.Generate("a", "admin", "", TokenTypeAccess)
		require.NoError(t, err)
		_, err = s.Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "s3cret", Issuer: "elsewhere"})
		token, err := other.Generate("a", "admin", "", TokenTypeAccess)
		require.NoError(t, err)
		_, err = s.Verify(token)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.Verify(token)
		assert.Error(t, err)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := s.Generate("", "admin", "", TokenTypeAccess)
		assert.Error(t, err)
	})
}
