// internal/pkg/session/rate_limiter_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRateLimiter(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRateLimiter(client), mr
}

func TestLoginAttemptsWithinLimit(t *testing.T) {
	rl, _ := newTestRateLimiter(t)
	ctx := context.Background()

	for i := int64(1); i <= maxLoginAttempts; i++ {
		allowed, remaining, err := rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, maxLoginAttempts-i, remaining)
	}

	// the attempt over the limit is denied
	allowed, remaining, err := rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(0), remaining)
}

func TestAttemptsAreScopedPerIPAndEmail(t *testing.T) {
	rl, _ := newTestRateLimiter(t)
	ctx := context.Background()

	for i := int64(0); i <= maxLoginAttempts; i++ {
		rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	}

	allowed, _, err := rl.CheckLoginAttempt(ctx, "5.6.7.8", "user@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = rl.CheckLoginAttempt(ctx, "1.2.3.4", "other@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestResetLoginAttempts(t *testing.T) {
	rl, _ := newTestRateLimiter(t)
	ctx := context.Background()

	for i := int64(0); i <= maxLoginAttempts; i++ {
		rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	}

	require.NoError(t, rl.ResetLoginAttempts(ctx, "1.2.3.4", "user@example.com"))

	allowed, remaining, err := rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, maxLoginAttempts-1, remaining)
}

func TestWindowExpiry(t *testing.T) {
	rl, mr := newTestRateLimiter(t)
	ctx := context.Background()

	for i := int64(0); i <= maxLoginAttempts; i++ {
		rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	}

	mr.FastForward(loginWindow + time.Second)

	allowed, _, err := rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestGetRemainingAttempts(t *testing.T) {
	rl, _ := newTestRateLimiter(t)
	ctx := context.Background()

	remaining, err := rl.GetRemainingAttempts(ctx, "1.2.3.4", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, maxLoginAttempts, remaining)

	rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")
	rl.CheckLoginAttempt(ctx, "1.2.3.4", "user@example.com")

	remaining, err = rl.GetRemainingAttempts(ctx, "1.2.3.4", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, maxLoginAttempts-2, remaining)
}
