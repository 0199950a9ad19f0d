package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glintdate/glint-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCfg = config.CacheConfig{
	PartnerTTL:     30 * time.Second,
	ActiveMatchTTL: 10 * time.Second,
	HistoryTTL:     10 * time.Minute,
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, testCfg), mr
}

func TestPartnerRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	type summary struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	var got summary
	assert.False(t, c.GetPartner(ctx, 7, &got))

	c.SetPartner(ctx, 7, &summary{ID: 7, Name: "Ada"})
	require.True(t, c.GetPartner(ctx, 7, &got))
	assert.Equal(t, summary{ID: 7, Name: "Ada"}, got)
}

func TestPartnerExpires(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	c.SetPartner(ctx, 7, map[string]string{"name": "Ada"})
	mr.FastForward(testCfg.PartnerTTL + time.Second)

	var got map[string]string
	assert.False(t, c.GetPartner(ctx, 7, &got))
}

func TestActiveMatchPointer(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	_, ok := c.GetActiveMatchID(ctx, 1)
	assert.False(t, ok)

	c.SetActiveMatchID(ctx, 1, 42)
	c.SetActiveMatchID(ctx, 2, 42)
	id, ok := c.GetActiveMatchID(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	// Every transition path drops both sides at once.
	c.DropActiveMatch(ctx, 1, 2)
	_, ok = c.GetActiveMatchID(ctx, 1)
	assert.False(t, ok)
	_, ok = c.GetActiveMatchID(ctx, 2)
	assert.False(t, ok)
}

func TestHistoryMarkIsOrderless(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	assert.False(t, c.HistorySeen(ctx, 3, 9))

	c.MarkHistorySeen(ctx, 9, 3)
	assert.True(t, c.HistorySeen(ctx, 3, 9))
	assert.True(t, c.HistorySeen(ctx, 9, 3))

	// A miss stays a miss: only positive facts get cached.
	assert.False(t, c.HistorySeen(ctx, 3, 10))
}

func TestNilCacheDegradesToMisses(t *testing.T) {
	ctx := context.Background()
	var c *Cache

	var got int
	assert.False(t, c.GetJSON(ctx, "k", &got))
	c.SetPartner(ctx, 1, "x")
	c.SetActiveMatchID(ctx, 1, 2)
	c.MarkHistorySeen(ctx, 1, 2)
	c.DropActiveMatch(ctx, 1, 2)
	_, ok := c.GetActiveMatchID(ctx, 1)
	assert.False(t, ok)
	assert.False(t, c.HistorySeen(ctx, 1, 2))
}

func TestRedisOutageIsInvisible(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)
	mr.Close()

	c.SetActiveMatchID(ctx, 1, 42)
	_, ok := c.GetActiveMatchID(ctx, 1)
	assert.False(t, ok)
}
