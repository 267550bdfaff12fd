package lexicon

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestRedisCache_StoreLookup(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)

	if v, err := c.Lookup(ctx, "apple", "en"); err != nil || v != Unknown {
		t.Fatalf("Expected Unknown for a missing key, got %v, %v", v, err)
	}
	c.Store(ctx, "apple", "en", true)
	c.Store(ctx, "xyzzyx", "en", false)

	if v, _ := c.Lookup(ctx, "apple", "en"); v != Valid {
		t.Errorf("Expected Valid, got %v", v)
	}
	if v, _ := c.Lookup(ctx, "xyzzyx", "en"); v != Invalid {
		t.Errorf("Expected Invalid, got %v", v)
	}
	if v, _ := c.Lookup(ctx, "apple", "de"); v != Unknown {
		t.Errorf("Entries must be keyed by language, got %v", v)
	}

	if got, _ := mr.Get("apple:en"); got != "1" {
		t.Errorf("Expected apple:en = 1, got %q", got)
	}
	if ttl := mr.TTL("apple:en"); ttl != 0 {
		t.Errorf("Entries should not expire, got TTL %v", ttl)
	}
}

func TestRedisCache_NegativeKeepsValid(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestRedisCache(t)

	c.Store(ctx, "taxi", "en", true)
	c.Store(ctx, "taxi", "en", false)
	if v, _ := c.Lookup(ctx, "taxi", "en"); v != Valid {
		t.Errorf("A negative must not replace a valid entry, got %v", v)
	}

	c.Store(ctx, "xyzzyx", "en", false)
	c.Store(ctx, "xyzzyx", "en", true)
	if v, _ := c.Lookup(ctx, "xyzzyx", "en"); v != Valid {
		t.Errorf("A positive should replace a negative, got %v", v)
	}
}

func TestRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisCache("redis://" + addr); err == nil {
		t.Error("Expected an error for an unreachable server")
	}
	if _, err := NewRedisCache("not a url"); err == nil {
		t.Error("Expected an error for a malformed URL")
	}
}

func TestTiered_RedisFront(t *testing.T) {
	ctx := context.Background()
	front, _ := newTestRedisCache(t)
	back := NewMemoryCache()
	back.Store(ctx, "hund", "de", true)

	c := NewTiered(front, back)
	if v, _ := c.Lookup(ctx, "hund", "de"); v != Valid {
		t.Fatalf("Expected Valid from the back cache, got %v", v)
	}
	if v, _ := front.Lookup(ctx, "hund", "de"); v != Valid {
		t.Errorf("Back hits should be promoted into Redis, got %v", v)
	}
}
