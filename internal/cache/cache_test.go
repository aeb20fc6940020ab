package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestCache(ttls map[string]time.Duration, maxEntries int) *Cache {
	c := New(Config{
		DefaultTTL:      time.Minute,
		MaxEntries:      maxEntries,
		CleanupInterval: time.Hour,
		TTLs:            ttls,
	})
	return c
}

func TestKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		k1 := Key("trending_skills", "30")
		k2 := Key("trending_skills", "30")
		if k1 != k2 {
			t.Errorf("Key not deterministic: %q != %q", k1, k2)
		}
	})

	t.Run("different inputs differ", func(t *testing.T) {
		k1 := Key("search_jobs", "golang")
		k2 := Key("search_jobs", "python")
		if k1 == k2 {
			t.Errorf("different inputs produced same key: %q", k1)
		}
	})

	t.Run("has prefix", func(t *testing.T) {
		k := Key("test")
		if k[:3] != "jt:" {
			t.Errorf("expected jt: prefix, got %q", k[:3])
		}
	})
}

func TestGetSet(t *testing.T) {
	c := newTestCache(nil, 100)
	defer c.Close()

	ctx := context.Background()
	key := Key("test", "round-trip")

	if _, ok := c.Get(ctx, "test", key); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set(ctx, "test", key, []byte("hello"))

	got, ok := c.Get(ctx, "test", key)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(got) != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestZeroTTLCategoryNeverCached(t *testing.T) {
	c := newTestCache(map[string]time.Duration{"scrape_jobs": 0}, 100)
	defer c.Close()

	ctx := context.Background()
	key := Key("scrape_jobs")

	c.Set(ctx, "scrape_jobs", key, []byte("fresh"))
	if _, ok := c.Get(ctx, "scrape_jobs", key); ok {
		t.Error("zero-TTL category must never be cached")
	}
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	c := newTestCache(map[string]time.Duration{"short": time.Nanosecond}, 100)
	defer c.Close()

	ctx := context.Background()
	key := Key("short", "x")
	c.Set(ctx, "short", key, []byte("stale"))
	time.Sleep(time.Millisecond)

	if _, ok := c.Get(ctx, "short", key); ok {
		t.Error("expired entry must miss")
	}
}

func TestNilCacheIsNoOp(t *testing.T) {
	var c *Cache
	ctx := context.Background()
	c.Set(ctx, "test", Key("x"), []byte("y"))
	if _, ok := c.Get(ctx, "test", Key("x")); ok {
		t.Error("nil cache must always miss")
	}
	c.Invalidate()
	c.Close()
}

func TestInvalidateDropsEntries(t *testing.T) {
	c := newTestCache(nil, 100)
	defer c.Close()

	ctx := context.Background()
	key := Key("statistics")
	c.Set(ctx, "statistics", key, []byte("42 jobs"))
	c.Invalidate()

	if _, ok := c.Get(ctx, "statistics", key); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestInvalidateRotatesNamespace(t *testing.T) {
	c := newTestCache(nil, 100)
	defer c.Close()

	key := Key("trending_skills")
	before := c.nsKey(key)
	c.Invalidate()
	after := c.nsKey(key)

	// Both tiers store under the generation-prefixed key; rotating it is
	// what severs pre-invalidation Redis entries, not just L1.
	if before == after {
		t.Errorf("namespace key unchanged after invalidate: %q", before)
	}
}

func TestEvictionKeepsL1Bounded(t *testing.T) {
	c := newTestCache(nil, 10)
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		c.Set(ctx, "test", Key("entry", fmt.Sprint(i)), []byte("v"))
	}

	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 10 {
		t.Errorf("L1 grew to %d entries, want <= 10", count)
	}
}
