package engine

import (
	"context"
	"testing"
	"time"
)

func TestCacheKeyDeterministic(t *testing.T) {
	k1 := CacheKey("embed", "bge-m3", "rust")
	k2 := CacheKey("embed", "bge-m3", "rust")
	k3 := CacheKey("embed", "bge-m3", "go")
	if k1 != k2 {
		t.Errorf("same parts produced different keys: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Error("different parts produced the same key")
	}
	if len(k1) != 27 { // "ps:" + 24 hex chars
		t.Errorf("unexpected key length %d: %s", len(k1), k1)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	InitCache("", time.Minute, 100, 0)
	ctx := context.Background()

	key := CacheKey("test", "roundtrip")
	if _, ok := CacheGetVector(ctx, key); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	vec := []float32{0.1, 0.2, 0.3}
	CacheSetVector(ctx, key, vec)

	got, ok := CacheGetVector(ctx, key)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if len(got) != 3 || got[0] != vec[0] || got[2] != vec[2] {
		t.Errorf("got %v, want %v", got, vec)
	}
}

func TestCacheExpiry(t *testing.T) {
	InitCache("", 10*time.Millisecond, 100, 0)
	ctx := context.Background()

	key := CacheKey("test", "expiry")
	CacheSetVector(ctx, key, []float32{1})
	time.Sleep(20 * time.Millisecond)

	if _, ok := CacheGetVector(ctx, key); ok {
		t.Error("expected miss after TTL")
	}
}

func TestCacheEviction(t *testing.T) {
	InitCache("", time.Minute, 3, 0)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c", "d", "e"} {
		CacheSetVector(ctx, CacheKey("evict", s), []float32{1})
	}

	count := 0
	vecCache.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count > 3 {
		t.Errorf("L1 holds %d entries, cap is 3", count)
	}
}
