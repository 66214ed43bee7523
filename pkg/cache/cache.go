// Package cache is a two tier cache: an in-process map backed by optional Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tiered keeps values in L1 memory and, when configured, in L2 Redis so they survive restarts.
type Tiered struct {
	l1         sync.Map      // key -> *entry
	rdb        *redis.Client // nil when Redis is disabled
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New builds a cache. An empty or unreachable redisURL leaves L2 disabled.
func New(ctx context.Context, redisURL string, ttl time.Duration, maxEntries int, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Tiered{ttl: ttl, maxEntries: maxEntries, logger: logger.With("component", "cache")}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			c.logger.Warn("invalid redis url, L2 disabled", "error", err)
			return c
		}
		rdb := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			c.logger.Warn("redis unreachable, L2 disabled", "error", err)
			rdb.Close()
			return c
		}
		c.rdb = rdb
		c.logger.Info("L2 redis connected", "addr", opts.Addr)
	}
	return c
}

// Key builds a deterministic key from parts.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("curator:%x", sum[:12])
}

// Get returns the raw bytes stored under key. An L2 hit repopulates L1.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.l1.Load(key); ok {
		e := v.(*entry)
		if time.Now().Before(e.expiresAt) {
			c.hits.Add(1)
			return e.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			c.hits.Add(1)
			c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})
			return data, true
		}
		if err != redis.Nil {
			c.logger.Debug("L2 get failed", "error", err)
		}
	}

	c.misses.Add(1)
	return nil, false
}

// Set stores data in both tiers.
func (c *Tiered) Set(ctx context.Context, key string, data []byte) {
	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("L2 set failed", "error", err)
		}
	}
}

// Stats returns hit and miss counters.
func (c *Tiered) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the Redis connection.
func (c *Tiered) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// GetJSON decodes a cached value of type T.
func GetJSON[T any](ctx context.Context, c *Tiered, key string) (T, bool) {
	var out T
	if c == nil {
		return out, false
	}
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// SetJSON encodes v and stores it.
func SetJSON[T any](ctx context.Context, c *Tiered, key string, v T) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, data)
}

// evictIfNeeded drops expired entries, then the ones closest to expiry, until L1 has room.
func (c *Tiered) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := time.Now()
	c.l1.Range(func(key, val any) bool {
		if e := val.(*entry); now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			e := val.(*entry)
			if oldestKey == nil || e.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, e.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}
