package lexicon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

func TestMemoryCache_StoreLookup(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	if v, _ := c.Lookup(ctx, "apple", "en"); v != Unknown {
		t.Fatalf("Expected Unknown for an empty cache, got %v", v)
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
}

func TestMemoryCache_NegativeKeepsValid(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

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

func TestMemoryCache_ConcurrentLanguages(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	langs := []string{"en", "de", "fr", "nl", "it"}

	var wg sync.WaitGroup
	for _, lang := range langs {
		wg.Add(2)
		go func(lang string) {
			defer wg.Done()
			c.Store(ctx, "radio", lang, true)
		}(lang)
		go func(lang string) {
			defer wg.Done()
			c.Lookup(ctx, "radio", lang)
		}(lang)
	}
	wg.Wait()

	if c.Len() != len(langs) {
		t.Errorf("Expected %d entries, got %d", len(langs), c.Len())
	}
}

// failingCache fails every call.
type failingCache struct{}

func (failingCache) Lookup(context.Context, string, string) (Verdict, error) {
	return Unknown, errors.New("unavailable")
}

func (failingCache) Store(context.Context, string, string, bool) error {
	return errors.New("unavailable")
}

func TestTiered_PromotesBackHits(t *testing.T) {
	ctx := context.Background()
	front, back := NewMemoryCache(), NewMemoryCache()
	back.Store(ctx, "apple", "en", true)
	tiered := NewTiered(front, back)

	if v, _ := tiered.Lookup(ctx, "apple", "en"); v != Valid {
		t.Fatalf("Expected Valid, got %v", v)
	}
	if v, _ := front.Lookup(ctx, "apple", "en"); v != Valid {
		t.Error("A back hit should be promoted to the front cache")
	}
}

func TestTiered_WritesThrough(t *testing.T) {
	ctx := context.Background()
	front, back := NewMemoryCache(), NewMemoryCache()
	tiered := NewTiered(front, back)

	if err := tiered.Store(ctx, "hund", "de", true); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if front.Len() != 1 || back.Len() != 1 {
		t.Errorf("Expected both tiers to hold the entry, got front=%d back=%d", front.Len(), back.Len())
	}
}

func TestTiered_FrontFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	back := NewMemoryCache()
	back.Store(ctx, "apple", "en", true)
	tiered := NewTiered(failingCache{}, back)

	if v, err := tiered.Lookup(ctx, "apple", "en"); err != nil || v != Valid {
		t.Errorf("Expected Valid from the back cache, got %v %v", v, err)
	}
	if err := tiered.Store(ctx, "pear", "en", true); err != nil {
		t.Errorf("Front failures must not fail Store: %v", err)
	}
}

// MockWordStore is an in-memory WordStore.
type MockWordStore struct {
	entries map[string]bool
}

func (m *MockWordStore) CachedWord(_ context.Context, word, lang string) (bool, bool, error) {
	valid, ok := m.entries[CacheKey(word, lang)]
	return valid, ok, nil
}

func (m *MockWordStore) StoreWord(_ context.Context, word, lang string, valid bool) error {
	m.entries[CacheKey(word, lang)] = valid
	return nil
}

func TestRepositoryCache(t *testing.T) {
	ctx := context.Background()
	store := &MockWordStore{entries: make(map[string]bool)}
	c := NewRepositoryCache(store)

	c.Store(ctx, "apple", "en", true)
	if !store.entries["apple:en"] {
		t.Error("Store should write through to the repository")
	}
	if v, _ := c.Lookup(ctx, "apple", "en"); v != Valid {
		t.Errorf("Expected Valid, got %v", v)
	}
	if v, _ := c.Lookup(ctx, "pear", "en"); v != Unknown {
		t.Errorf("Expected Unknown, got %v", v)
	}
}

func TestBoltCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lexicon.db")

	c, err := OpenBoltCache(path)
	if err != nil {
		t.Fatalf("OpenBoltCache failed: %v", err)
	}
	if v, _ := c.Lookup(ctx, "hund", "de"); v != Unknown {
		t.Errorf("Expected Unknown before the bucket exists, got %v", v)
	}
	c.Store(ctx, "hund", "de", true)
	c.Store(ctx, "hund", "de", false)
	c.Store(ctx, "xyzzyx", "de", false)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenBoltCache(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()
	if v, _ := reopened.Lookup(ctx, "hund", "de"); v != Valid {
		t.Errorf("Expected Valid after reopening, got %v", v)
	}
	if v, _ := reopened.Lookup(ctx, "xyzzyx", "de"); v != Invalid {
		t.Errorf("Expected Invalid after reopening, got %v", v)
	}
	if v, _ := reopened.Lookup(ctx, "hund", "en"); v != Unknown {
		t.Errorf("Expected Unknown in another language, got %v", v)
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("apple", "en"); got != "apple:en" {
		t.Errorf("CacheKey = %q, want apple:en", got)
	}
}
