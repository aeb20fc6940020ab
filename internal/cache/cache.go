// Package cache provides a 2-tier response cache: L1 in-memory plus an
// optional Redis L2. L1 is fast but lost on restart, L2 survives restarts.
// Entries carry a per-category TTL so cheap lookups can be cached longer
// than mutating operations, which are not cached at all.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anatolykoptev/go_trends/internal/metrics"
)

// Config controls cache construction.
type Config struct {
	RedisURL        string        // empty disables L2
	DefaultTTL      time.Duration // used for categories without a policy
	MaxEntries      int           // L1 cap, <= 0 disables eviction
	CleanupInterval time.Duration
	// TTLs maps a category to its TTL. A zero TTL means the category is
	// never cached.
	TTLs map[string]time.Duration
}

// Cache is the tiered store. A nil *Cache is a valid no-op cache.
type Cache struct {
	l1         sync.Map // key -> *entry
	rdb        *redis.Client
	defaultTTL time.Duration
	maxEntries int
	ttls       map[string]time.Duration
	gen        atomic.Int64 // namespace generation, bumped by Invalidate
	stop       chan struct{}
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// New builds the cache and starts the L1 cleanup loop. Redis being down or
// misconfigured only disables L2.
func New(cfg Config) *Cache {
	c := &Cache{
		defaultTTL: cfg.DefaultTTL,
		maxEntries: cfg.MaxEntries,
		ttls:       cfg.TTLs,
		stop:       make(chan struct{}),
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = 15 * time.Minute
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := rdb.Ping(ctx).Err(); err != nil {
				slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
			} else {
				c.rdb = rdb
				slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
			}
		}
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go c.cleanupLoop(interval)

	slog.Info("cache: initialized",
		slog.Duration("default_ttl", c.defaultTTL),
		slog.Bool("redis", c.rdb != nil),
		slog.Int("max_entries", c.maxEntries),
	)
	return c
}

// Close stops the cleanup loop and the Redis connection.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	close(c.stop)
	if c.rdb != nil {
		c.rdb.Close()
	}
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("jt:%x", hash[:12])
}

// nsKey prefixes a key with the current generation. Both tiers store under
// the prefixed key, so bumping the generation orphans every existing entry
// at once, Redis included.
func (c *Cache) nsKey(key string) string {
	return fmt.Sprintf("g%d:%s", c.gen.Load(), key)
}

// ttlFor resolves the category TTL. An explicit zero disables caching for
// the category.
func (c *Cache) ttlFor(category string) time.Duration {
	if ttl, ok := c.ttls[category]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Get tries L1, then L2. On an L2 hit the entry is copied back into L1.
func (c *Cache) Get(ctx context.Context, category, key string) ([]byte, bool) {
	if c == nil || c.ttlFor(category) == 0 {
		return nil, false
	}
	key = c.nsKey(key)

	if val, ok := c.l1.Load(key); ok {
		e := val.(*entry)
		if time.Now().Before(e.expiresAt) {
			slog.Debug("cache: L1 hit", slog.String("key", key))
			metrics.IncrCacheHits()
			return e.data, true
		}
		c.l1.Delete(key)
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			metrics.IncrCacheHits()
			c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(c.ttlFor(category))})
			return data, true
		}
	}

	metrics.IncrCacheMisses()
	return nil, false
}

// Set stores the value in both tiers. Categories with a zero TTL are
// silently skipped.
func (c *Cache) Set(ctx context.Context, category, key string, data []byte) {
	if c == nil {
		return
	}
	ttl := c.ttlFor(category)
	if ttl == 0 {
		return
	}
	key = c.nsKey(key)

	c.evictIfNeeded()
	c.l1.Store(key, &entry{data: data, expiresAt: time.Now().Add(ttl)})

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// Invalidate drops every cached entry, both tiers. Bumping the generation
// makes old keys unreachable; orphaned Redis entries expire by TTL. Called
// after mutations that change what cached answers would say.
func (c *Cache) Invalidate() {
	if c == nil {
		return
	}
	c.gen.Add(1)
	c.l1.Range(func(key, _ any) bool {
		c.l1.Delete(key)
		return true
	})
}

// evictIfNeeded removes entries when L1 exceeds maxEntries: expired entries
// first, then the oldest until under the limit.
func (c *Cache) evictIfNeeded() {
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
		if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})
	if count < c.maxEntries {
		return
	}

	var oldest struct {
		key any
		at  time.Time
	}
	for count >= c.maxEntries {
		oldest.key = nil
		oldest.at = now.Add(time.Hour)
		c.l1.Range(func(key, val any) bool {
			if e, ok := val.(*entry); ok && e.expiresAt.Before(oldest.at) {
				oldest.key = key
				oldest.at = e.expiresAt
			}
			return true
		})
		if oldest.key == nil {
			break
		}
		c.l1.Delete(oldest.key)
		count--
	}
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.l1.Range(func(key, val any) bool {
				if e, ok := val.(*entry); ok && now.After(e.expiresAt) {
					c.l1.Delete(key)
				}
				return true
			})
		}
	}
}
