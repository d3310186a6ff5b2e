package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuitiondesk/backend/internal/shared"
)

func newTokenService(secret string, hours int) *AuthService {
	return &AuthService{config: &shared.ServiceConfig{
		Security: shared.SecurityConfig{JWTSecret: secret, JWTExpirationHours: hours, BCryptCost: 4},
	}}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTokenService("secret", 100)

	token, expiresAt, err := s.generateToken("USR_1", shared.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(100*time.Hour), expiresAt, time.Minute)

	claims, err := s.parseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "USR_1", claims.UserID)
	assert.Equal(t, shared.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokensAreUnique(t *testing.T) {
	s := newTokenService("secret", 1)

	a, _, err := s.generateToken("USR_1", shared.RoleStudent)
	require.NoError(t, err)
	b, _, err := s.generateToken("USR_1", shared.RoleStudent)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestParseToken_Rejects(t *testing.T) {
	s := newTokenService("secret", 1)
	other := newTokenService("other-secret", 1)

	foreign, _, err := other.generateToken("USR_1", shared.RoleOwner)
	require.NoError(t, err)
	_, err = s.parseToken(foreign)
	assert.Error(t, err, "wrong signature")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, CustomClaims{
		UserID: "USR_1",
		Role:   shared.RoleOwner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    tokenIssuer,
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.parseToken(signed)
	assert.Error(t, err, "expired")

	_, err = s.parseToken("not-a-jwt")
	assert.Error(t, err)
}

func TestPasswordHelpers(t *testing.T) {
	hash, err := HashPassword("Ravi05", 4)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "Ravi05"))
	assert.False(t, CheckPassword(hash, "ravi05"))
	assert.False(t, CheckPassword("", "Ravi05"))
}
