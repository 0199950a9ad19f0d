// Package cache is a short-TTL read cache over Redis. Only lookups whose
// staleness is harmless are cached; everything here is an optimization and
// a nil *Cache (or a Redis hiccup) degrades to a plain store read.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	rdb *redis.Client
	cfg config.CacheConfig
}

func New(rdb *redis.Client, cfg config.CacheConfig) *Cache {
	return &Cache{rdb: rdb, cfg: cfg}
}

func keyPartner(userID int64) string     { return fmt.Sprintf("glint:partner:%d", userID) }
func keyActiveMatch(userID int64) string { return fmt.Sprintf("glint:active:%d", userID) }

func keyHistory(a, b int64) string {
	u1, u2 := domain.CanonicalPair(a, b)
	return fmt.Sprintf("glint:history:%d:%d", u1, u2)
}

func (c *Cache) ready() bool { return c != nil && c.rdb != nil }

// GetJSON returns (false, nil) on a miss or on any Redis error: the cache
// never turns a read into a failure.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if !c.ready() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !c.ready() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, raw, ttl)
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.ready() || len(keys) == 0 {
		return
	}
	c.rdb.Del(ctx, keys...)
}

// Partner summaries change rarely; 30s of staleness is invisible to users.

func (c *Cache) GetPartner(ctx context.Context, userID int64, dest any) bool {
	return c.GetJSON(ctx, keyPartner(userID), dest)
}

func (c *Cache) SetPartner(ctx context.Context, userID int64, v any) {
	if !c.ready() {
		return
	}
	c.SetJSON(ctx, keyPartner(userID), v, c.cfg.PartnerTTL)
}

// The active-match pointer is short-lived and deleted by every transition
// path, so a stale hit can only survive a few seconds.

func (c *Cache) GetActiveMatchID(ctx context.Context, userID int64) (int64, bool) {
	var id int64
	ok := c.GetJSON(ctx, keyActiveMatch(userID), &id)
	return id, ok
}

func (c *Cache) SetActiveMatchID(ctx context.Context, userID, matchID int64) {
	if !c.ready() {
		return
	}
	c.SetJSON(ctx, keyActiveMatch(userID), matchID, c.cfg.ActiveMatchTTL)
}

func (c *Cache) DropActiveMatch(ctx context.Context, userIDs ...int64) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, keyActiveMatch(id))
	}
	c.Delete(ctx, keys...)
}

// History is append-only, so positive hits are permanent facts and safe to
// cache for a long time. Negative results are never cached: a stale "never
// matched" could let a rematch through.

func (c *Cache) HistorySeen(ctx context.Context, a, b int64) bool {
	var seen bool
	return c.GetJSON(ctx, keyHistory(a, b), &seen) && seen
}

func (c *Cache) MarkHistorySeen(ctx context.Context, a, b int64) {
	if !c.ready() {
		return
	}
	c.SetJSON(ctx, keyHistory(a, b), true, c.cfg.HistoryTTL)
}
