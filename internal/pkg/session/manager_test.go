// internal/pkg/session/manager_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "maproom-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewManager(client), mr
}

func testSession(jti string, identityID int64) *SessionData {
	now := time.Now()
	return &SessionData{
		JTI:            jti,
		IdentityID:     identityID,
		Email:          "user@example.com",
		Roles:          []string{"user"},
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(time.Hour),
	}
}

func TestCreateAndGetSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("jti-1", 42)))

	got, err := m.GetSession(ctx, 42, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.IdentityID)
	assert.Equal(t, "user@example.com", got.Email)
}

func TestCreateSessionRejectsExpired(t *testing.T) {
	m, _ := newTestManager(t)

	s := testSession("jti-1", 42)
	s.ExpiresAt = time.Now().Add(-time.Minute)

	assert.Error(t, m.CreateSession(context.Background(), s))
}

func TestGetMissingSession(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.GetSession(context.Background(), 42, "nope")
	assert.True(t, errors.Is(err, xerrors.ErrSessionExpired))
}

func TestSessionExpiresWithTTL(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("jti-1", 42)))

	mr.FastForward(2 * time.Hour)

	_, err := m.GetSession(ctx, 42, "jti-1")
	assert.True(t, errors.Is(err, xerrors.ErrSessionExpired))
}

func TestDeleteSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("jti-1", 42)))
	require.NoError(t, m.DeleteSession(ctx, 42, "jti-1"))

	_, err := m.GetSession(ctx, 42, "jti-1")
	assert.True(t, errors.Is(err, xerrors.ErrSessionExpired))
}

func TestDeleteAllSessionsLeavesOtherIdentitiesAlone(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, testSession("jti-1", 42)))
	require.NoError(t, m.CreateSession(ctx, testSession("jti-2", 42)))
	require.NoError(t, m.CreateSession(ctx, testSession("jti-3", 99)))

	require.NoError(t, m.DeleteAllSessions(ctx, 42))

	_, err := m.GetSession(ctx, 42, "jti-1")
	assert.Error(t, err)
	_, err = m.GetSession(ctx, 42, "jti-2")
	assert.Error(t, err)

	got, err := m.GetSession(ctx, 99, "jti-3")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.IdentityID)
}

func TestTouchSessionUpdatesActivity(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s := testSession("jti-1", 42)
	s.LastActivityAt = time.Now().Add(-time.Hour)
	require.NoError(t, m.CreateSession(ctx, s))

	require.NoError(t, m.TouchSession(ctx, 42, "jti-1"))

	got, err := m.GetSession(ctx, 42, "jti-1")
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.After(s.LastActivityAt))
}

func TestTouchMissingSessionIsANoop(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.TouchSession(context.Background(), 42, "nope"))
}
