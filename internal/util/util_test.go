package util

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelforge/internal/config"
	"pixelforge/internal/domain"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{SecretKey: "test-secret-key-that-is-long-enough-1234", TokenExpiryMinutes: 30}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testAuthConfig()
	user := &domain.User{ID: 42, Email: "ops@example.com", Role: domain.RoleManager}

	token, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, domain.RoleManager, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Email)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(testAuthConfig(), &domain.User{ID: 1})
	require.NoError(t, err)

	other := &config.AuthConfig{SecretKey: "another-secret-key-that-is-long-enough", TokenExpiryMinutes: 30}
	_, err = ValidateToken(other, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := testAuthConfig()
	past := time.Now().Add(-time.Hour)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(past),
		IssuedAt:  jwt.NewNumericDate(past.Add(-time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.SecretKey))
	require.NoError(t, err)

	_, err = ValidateToken(cfg, token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}

func TestResetCode(t *testing.T) {
	code, err := GenerateResetCode()
	require.NoError(t, err)
	assert.Len(t, code, ResetCodeLength)
	assert.Regexp(t, `^\d+$`, code)

	hash := HashResetCode(code)
	assert.True(t, ResetCodeMatches(code, hash))
	assert.True(t, ResetCodeMatches(" "+code+" ", hash))
	assert.False(t, ResetCodeMatches("not-it", hash))
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow("a@example.com"))
	require.NoError(t, l.Allow("a@example.com"))
	assert.Error(t, l.Allow("a@example.com"))
	assert.NoError(t, l.Allow("b@example.com"))

	now = now.Add(61 * time.Second)
	assert.NoError(t, l.Allow("a@example.com"))

	now = now.Add(2 * time.Minute)
	l.Cleanup()
	assert.Empty(t, l.requests)
}

func TestRateLimiterDropsIdleKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(3)
	l.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		require.NoError(t, l.Allow(fmt.Sprintf("user-%d@example.com", i)))
	}
	assert.Len(t, l.requests, 10000)

	now = now.Add(time.Hour)
	require.NoError(t, l.Allow("late@example.com"))
	assert.Len(t, l.requests, 1)
	assert.Contains(t, l.requests, "late@example.com")
}
