// Package lexicon decides whether a word exists in a language. Verdicts come
// from a permanent cache first and from an external source otherwise.
package lexicon

import (
	"context"
	"sync"

	"github.com/wfunc/wordchain/logger"
)

// Verdict is what a cache knows about a (word, language) pair.
type Verdict int

const (
	Unknown Verdict = iota
	Valid
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	}
	return "unknown"
}

func verdictOf(valid bool) Verdict {
	if valid {
		return Valid
	}
	return Invalid
}

// Cache stores lookup verdicts keyed by (word, language). Entries never
// expire and a Valid entry is never replaced by a negative one.
// Implementations must be safe for concurrent use.
type Cache interface {
	Lookup(ctx context.Context, word, lang string) (Verdict, error)
	Store(ctx context.Context, word, lang string, valid bool) error
}

type cacheKey struct {
	word string
	lang string
}

// MemoryCache keeps verdicts in a map.
type MemoryCache struct {
	entries map[cacheKey]bool
	mutex   sync.RWMutex
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[cacheKey]bool)}
}

func (c *MemoryCache) Lookup(_ context.Context, word, lang string) (Verdict, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	valid, ok := c.entries[cacheKey{word, lang}]
	if !ok {
		return Unknown, nil
	}
	return verdictOf(valid), nil
}

func (c *MemoryCache) Store(_ context.Context, word, lang string, valid bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	key := cacheKey{word, lang}
	if !valid && c.entries[key] {
		return nil
	}
	c.entries[key] = valid
	return nil
}

// Len returns the number of cached pairs.
func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// WordStore is the part of the repository that backs the word_cache table.
type WordStore interface {
	CachedWord(ctx context.Context, word, lang string) (valid bool, found bool, err error)
	StoreWord(ctx context.Context, word, lang string, valid bool) error
}

// RepositoryCache adapts a WordStore to Cache.
type RepositoryCache struct {
	store WordStore
}

func NewRepositoryCache(store WordStore) *RepositoryCache {
	return &RepositoryCache{store: store}
}

func (c *RepositoryCache) Lookup(ctx context.Context, word, lang string) (Verdict, error) {
	valid, found, err := c.store.CachedWord(ctx, word, lang)
	if err != nil || !found {
		return Unknown, err
	}
	return verdictOf(valid), nil
}

func (c *RepositoryCache) Store(ctx context.Context, word, lang string, valid bool) error {
	return c.store.StoreWord(ctx, word, lang, valid)
}

// Tiered reads through a fast front cache into a durable back cache and
// writes to both. Front failures are logged and never fail the call.
type Tiered struct {
	front Cache
	back  Cache
}

func NewTiered(front, back Cache) *Tiered {
	return &Tiered{front: front, back: back}
}

func (t *Tiered) Lookup(ctx context.Context, word, lang string) (Verdict, error) {
	v, err := t.front.Lookup(ctx, word, lang)
	if err != nil {
		logger.Log.Warnf("front cache lookup failed for language %s: %v", lang, err)
	}
	if v != Unknown {
		return v, nil
	}

	v, err = t.back.Lookup(ctx, word, lang)
	if err != nil || v == Unknown {
		return v, err
	}
	if err := t.front.Store(ctx, word, lang, v == Valid); err != nil {
		logger.Log.Warnf("front cache promotion failed for language %s: %v", lang, err)
	}
	return v, nil
}

func (t *Tiered) Store(ctx context.Context, word, lang string, valid bool) error {
	if err := t.back.Store(ctx, word, lang, valid); err != nil {
		return err
	}
	if err := t.front.Store(ctx, word, lang, valid); err != nil {
		logger.Log.Warnf("front cache store failed for language %s: %v", lang, err)
	}
	return nil
}
