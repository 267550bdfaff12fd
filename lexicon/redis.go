package lexicon

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/wordchain/logger"
)

// RedisCache keeps verdicts under "word:language" keys without a TTL.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(redisURL string) (*RedisCache, error) {
	// redis://host:port or redis://host:port/db
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	logger.Log.Infof("Connected to Redis at %s", opts.Addr)
	return &RedisCache{client: client}, nil
}

// CacheKey formats the key of a (word, language) pair, e.g. "apple:en".
func CacheKey(word, lang string) string {
	return word + ":" + lang
}

func (c *RedisCache) Lookup(ctx context.Context, word, lang string) (Verdict, error) {
	v, err := c.client.Get(ctx, CacheKey(word, lang)).Result()
	if errors.Is(err, redis.Nil) {
		return Unknown, nil
	}
	if err != nil {
		return Unknown, err
	}
	return verdictOf(v == "1"), nil
}

// Store overwrites with positives only; a negative is written only when the
// key is free.
func (c *RedisCache) Store(ctx context.Context, word, lang string, valid bool) error {
	if valid {
		return c.client.Set(ctx, CacheKey(word, lang), "1", 0).Err()
	}
	return c.client.SetNX(ctx, CacheKey(word, lang), "0", 0).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
