package engine

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

// Embedding vectors are immutable once computed, so the cache is 2-tier:
// L1 in-memory for the hot working set, L2 Redis so restarts do not re-bill
// the embedding service for the whole vocabulary.
var vecCache *tieredCache

// Cache metrics — atomic counters for thread-safe access.
var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// tieredCache implements L1 (memory) + L2 (Redis) caching.
type tieredCache struct {
	l1              sync.Map      // key → *cacheEntry
	rdb             *redis.Client // nil if Redis unavailable
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the 2-tier vector cache. Call after Init().
// redisURL can be empty to disable L2.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{ttl: ttl, maxEntries: maxEntries, cleanupInterval: cleanupInterval}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
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

	vecCache = c
	slog.Info("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))

	if cleanupInterval > 0 {
		go c.cleanupLoop()
	}
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("ps:%x", hash[:12]) // 24-char hex prefix
}

// CacheGetVector tries L1, then L2. On L2 hit, populates L1.
func CacheGetVector(ctx context.Context, key string) ([]float32, bool) {
	if vecCache == nil {
		cacheMisses.Add(1)
		return nil, false
	}

	// L1 check
	if val, ok := vecCache.l1.Load(key); ok {
		entry := val.(*cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			var vec []float32
			if json.Unmarshal(entry.data, &vec) == nil {
				cacheHits.Add(1)
				return vec, true
			}
		}
		vecCache.l1.Delete(key) // expired or corrupt
	}

	// L2 check
	if vecCache.rdb != nil {
		data, err := vecCache.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var vec []float32
			if json.Unmarshal(data, &vec) == nil {
				cacheHits.Add(1)
				vecCache.l1.Store(key, &cacheEntry{
					data:      data,
					expiresAt: time.Now().Add(vecCache.ttl),
				})
				return vec, true
			}
		}
	}

	cacheMisses.Add(1)
	return nil, false
}

// CacheSetVector stores vec in both L1 and L2.
func CacheSetVector(ctx context.Context, key string, vec []float32) {
	if vecCache == nil {
		return
	}

	data, err := json.Marshal(vec)
	if err != nil {
		return
	}

	vecCache.evictIfNeeded()

	vecCache.l1.Store(key, &cacheEntry{
		data:      data,
		expiresAt: time.Now().Add(vecCache.ttl),
	})

	if vecCache.rdb != nil {
		if err := vecCache.rdb.Set(ctx, key, data, vecCache.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns current cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// evictIfNeeded removes entries when L1 exceeds maxEntries:
// expired entries first, then the entries closest to expiry.
func (c *tieredCache) evictIfNeeded() {
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
		if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return count >= c.maxEntries
	})

	// Still over: drop whichever entries expire soonest (expiry = createdAt + ttl,
	// so earliest expiry is the oldest entry).
	for count >= c.maxEntries {
		var oldestKey any
		oldestAt := now.Add(c.ttl + time.Hour)
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && entry.expiresAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.expiresAt
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

// cleanupLoop periodically drops expired L1 entries.
func (c *tieredCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.l1.Range(func(key, val any) bool {
			if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
				c.l1.Delete(key)
			}
			return true
		})
	}
}
