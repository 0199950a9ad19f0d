package admission

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, max int64, window time.Duration) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRateLimiter(rdb, config.AdmissionConfig{
		RateLimitMax:    max,
		RateLimitWindow: window,
	}), mr
}

func TestLimiterAllowsWithinWindow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _, err := l.Allow(ctx, "u:1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := l.Allow(ctx, "u:1")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)
}

func TestLimiterIsPerIdentity(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, time.Minute)

	allowed, _, err := l.Allow(ctx, "u:1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _ = l.Allow(ctx, "u:1")
	assert.False(t, allowed)

	allowed, _, err = l.Allow(ctx, "ip:10.0.0.7")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterWindowRollsOver(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)

	_, _, err := l.Allow(ctx, "u:1")
	require.NoError(t, err)
	allowed, _, _ := l.Allow(ctx, "u:1")
	require.False(t, allowed)

	mr.FastForward(time.Minute)

	allowed, _, err = l.Allow(ctx, "u:1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, time.Minute)
	mr.Close()

	allowed, _, err := l.Allow(ctx, "u:1")
	assert.Error(t, err)
	assert.True(t, allowed)
}
