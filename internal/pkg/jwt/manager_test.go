// internal/pkg/jwt/manager_test.go
package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:   "test-secret-at-least-32-bytes-long!",
		Issuer:   "maproom",
		Audience: "maproom-users",
		TTL:      time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(Config{Issuer: "maproom"})
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, jti, err := m.GenerateAccessToken(42, []string{"user", "platform_admin"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, jti)

	claims, err := m.VerifyAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.IdentityID)
	assert.Equal(t, jti, claims.ID)
	assert.Equal(t, "access", claims.SessionPurpose)
	assert.True(t, claims.HasRole("user"))
	assert.True(t, claims.IsPlatformAdmin())
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.GenerateRefreshToken(42)
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(token)
	assert.Error(t, err)

	claims, err := m.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.SessionPurpose)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager(Config{
		Secret:   "a-completely-different-signing-key!!",
		Issuer:   "maproom",
		Audience: "maproom-users",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	token, _, err := m.GenerateAccessToken(1, nil)
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	other, err := NewManager(Config{
		Secret:   "test-secret-at-least-32-bytes-long!",
		Issuer:   "someone-else",
		Audience: "maproom-users",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	token, _, err := other.GenerateAccessToken(1, nil)
	require.NoError(t, err)

	m := newTestManager(t)
	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Generate(1, nil, "access", time.Nanosecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = m.Verify(token)
	assert.Error(t, err)
}

func TestEachTokenGetsAFreshJTI(t *testing.T) {
	m := newTestManager(t)

	_, jti1, err := m.GenerateAccessToken(1, nil)
	require.NoError(t, err)
	_, jti2, err := m.GenerateAccessToken(1, nil)
	require.NoError(t, err)

	assert.NotEqual(t, jti1, jti2)
}
