package lexicon

import (
	"context"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

type boltEntry struct {
	Valid     bool      `json:"valid"`
	CheckedAt time.Time `json:"checked_at"`
}

// BoltCache stores verdicts in a bbolt file, one bucket per language.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens or creates the cache file at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Lookup(_ context.Context, word, lang string) (Verdict, error) {
	verdict := Unknown
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(lang))
		if b == nil {
			return nil
		}
		v := b.Get([]byte(word))
		if v == nil {
			return nil
		}
		var entry boltEntry
		if err := json.Unmarshal(v, &entry); err != nil {
			return err
		}
		verdict = verdictOf(entry.Valid)
		return nil
	})
	return verdict, err
}

func (c *BoltCache) Store(_ context.Context, word, lang string, valid bool) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(lang))
		if err != nil {
			return err
		}
		if !valid {
			if v := b.Get([]byte(word)); v != nil {
				var entry boltEntry
				if json.Unmarshal(v, &entry) == nil && entry.Valid {
					return nil
				}
			}
		}
		bts, err := json.Marshal(boltEntry{Valid: valid, CheckedAt: time.Now()})
		if err != nil {
			return err
		}
		return b.Put([]byte(word), bts)
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
