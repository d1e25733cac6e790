// Package translation implements the fan-out translation pipeline: resolving
// a room's recipients into language groups, dispatching one job per target
// language, and the worker that turns a job into per-user delivered copies
// through a global (source text, target language) cache and a model.
package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/owenstack/chat/internal/repo"
)

// Cache maps an exact (source text, target language) pair to a translation.
// Entries are never overwritten: the first stored translation wins.
type Cache interface {
	Lookup(ctx context.Context, text, lang string) (string, bool, error)
	Store(ctx context.Context, text, lang, translated string) error
}

// DBCache is the authoritative cache tier stored in the translation_cache table.
type DBCache struct {
	db *gorm.DB
}

// NewDBCache returns a cache backed by db.
func NewDBCache(db *gorm.DB) *DBCache { return &DBCache{db: db} }

// Lookup returns the stored translation for exactly (text, lang).
func (c *DBCache) Lookup(ctx context.Context, text, lang string) (string, bool, error) {
	e, err := repo.GetCachedTranslation(ctx, c.db, text, lang)
	if errors.Is(err, repo.ErrNotFound) {
		cacheLookups.WithLabelValues("db", "miss").Inc()
		return "", false, nil
	}
	if err != nil {
		cacheLookups.WithLabelValues("db", "error").Inc()
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}
	cacheLookups.WithLabelValues("db", "hit").Inc()
	return e.TranslatedText, true, nil
}

// Store appends (text, lang) -> translated. A concurrent writer that lost the
// race is not an error.
func (c *DBCache) Store(ctx context.Context, text, lang, translated string) error {
	if _, err := repo.PutCachedTranslation(ctx, c.db, text, lang, translated); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// RedisCache is a read-through hot tier in front of another Cache. Redis
// failures degrade to the next tier.
type RedisCache struct {
	client redis.UniversalClient
	next   Cache
	ttl    time.Duration
}

// NewRedisCache layers a Redis tier with the given entry TTL over next.
func NewRedisCache(client redis.UniversalClient, next Cache, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, next: next, ttl: ttl}
}

type redisEntry struct {
	Source     string `json:"s"`
	Translated string `json:"t"`
}

// CacheKey is the Redis key of a (text, lang) pair.
func CacheKey(text, lang string) string {
	return "tcache:" + lang + ":" + repo.HashSource(text)
}

// Lookup consults Redis first, then the next tier, warming Redis on a hit there.
func (c *RedisCache) Lookup(ctx context.Context, text, lang string) (string, bool, error) {
	key := CacheKey(text, lang)
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var e redisEntry
		if json.Unmarshal([]byte(raw), &e) == nil && e.Source == text {
			cacheLookups.WithLabelValues("redis", "hit").Inc()
			return e.Translated, true, nil
		}
		cacheLookups.WithLabelValues("redis", "miss").Inc()
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues("redis", "miss").Inc()
	default:
		cacheLookups.WithLabelValues("redis", "error").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("redis cache get failed")
	}

	translated, ok, err := c.next.Lookup(ctx, text, lang)
	if err != nil || !ok {
		return translated, ok, err
	}
	c.warm(ctx, key, text, translated)
	return translated, true, nil
}

// Store writes through to the next tier, then warms Redis.
func (c *RedisCache) Store(ctx context.Context, text, lang, translated string) error {
	if err := c.next.Store(ctx, text, lang, translated); err != nil {
		return err
	}
	// Read back so Redis mirrors the winning entry when another writer beat us.
	winner, ok, err := c.next.Lookup(ctx, text, lang)
	if err != nil || !ok {
		return err
	}
	c.warm(ctx, CacheKey(text, lang), text, winner)
	return nil
}

func (c *RedisCache) warm(ctx context.Context, key, text, translated string) {
	raw, _ := json.Marshal(redisEntry{Source: text, Translated: translated})
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("redis cache set failed")
	}
}
