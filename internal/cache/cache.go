// Package cache is the TTL key/value layer used as a read-through cache for
// low-churn reference data. Two backends exist: Redis for shared
// deployments and an in-process Badger store for single instances and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jobmate/search-service/internal/metrics"
)

// ErrMiss is returned by Backend.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend is a byte-oriented TTL store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Cache adds JSON encoding and read-through loading on top of a Backend.
type Cache struct {
	backend Backend
	log     zerolog.Logger
}

// New returns a Cache over backend.
func New(backend Backend, log zerolog.Logger) *Cache {
	return &Cache{backend: backend, log: log}
}

// generationTTL outlives any entry TTL the service uses.
const generationTTL = 24 * time.Hour

// generationKey holds a token that changes on every Invalidate of key.
// Remember compares it around its load so a value read before a write is
// never left behind after that write's invalidation.
func generationKey(key string) string {
	return "gen:" + key
}

// Invalidate deletes keys. Write paths call it before reporting success, so
// its error must be propagated.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	token := []byte(uuid.NewString())
	for _, key := range keys {
		if err := c.backend.Set(ctx, generationKey(key), token, generationTTL); err != nil {
			return fmt.Errorf("cache invalidate %s: bump generation: %w", key, err)
		}
	}
	if err := c.backend.Del(ctx, keys...); err != nil {
		return fmt.Errorf("cache invalidate %v: %w", keys, err)
	}
	return nil
}

// generation returns the current token of key, "" when none was set.
func (c *Cache) generation(ctx context.Context, key string) (string, error) {
	raw, err := c.backend.Get(ctx, generationKey(key))
	if errors.Is(err, ErrMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Remember returns the cached value under key, or calls load and caches its
// result for ttl. Backend failures are logged and fall through to load; they
// never fail the read.
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	prefix := keyPrefix(key)

	raw, err := c.backend.Get(ctx, key)
	switch {
	case err == nil:
		var v T
		uerr := json.Unmarshal(raw, &v)
		if uerr == nil {
			metrics.CacheHits.WithLabelValues(prefix).Inc()
			return v, nil
		}
		c.log.Warn().Err(uerr).Str("key", key).Msg("discarding undecodable cache entry")
	case !errors.Is(err, ErrMiss):
		c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
	}
	metrics.CacheMisses.WithLabelValues(prefix).Inc()

	gen, genErr := c.generation(ctx, key)
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if genErr != nil {
		c.log.Warn().Err(genErr).Str("key", key).Msg("cache generation unreadable, not caching")
		return v, nil
	}
	c.store(ctx, key, gen, v, ttl)
	return v, nil
}

// store caches v unless key was invalidated since gen was read. The second
// check covers an invalidation landing between the first one and Set.
func (c *Cache) store(ctx context.Context, key, gen string, v any, ttl time.Duration) {
	if now, err := c.generation(ctx, key); err != nil || now != gen {
		c.log.Debug().Str("key", key).Msg("invalidated while loading, not caching")
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.backend.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		return
	}
	if now, err := c.generation(ctx, key); err != nil || now != gen {
		if err := c.backend.Del(ctx, key); err != nil {
			c.log.Error().Err(err).Str("key", key).Msg("drop entry invalidated while loading")
		}
	}
}

func keyPrefix(key string) string {
	if i := strings.LastIndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
