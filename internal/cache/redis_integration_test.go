//go:build integration

package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/search-service/internal/cache"
	"jobmate/search-service/internal/testinfra"
)

func TestIntegration_RedisBackendGetSetDel(t *testing.T) {
	rdb := testinfra.Redis(t)
	b := cache.NewRedisBackend(rdb, "search")
	ctx := context.Background()

	_, err := b.Get(ctx, "ref:skills")
	assert.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, b.Set(ctx, "ref:skills", []byte(`["go"]`), time.Minute))
	raw, err := b.Get(ctx, "ref:skills")
	require.NoError(t, err)
	assert.JSONEq(t, `["go"]`, string(raw))

	// Stored under the namespace, invisible without it.
	n, err := rdb.Exists(ctx, "search:ref:skills").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = rdb.Exists(ctx, "ref:skills").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, b.Del(ctx, "ref:skills", "never-set"))
	_, err = b.Get(ctx, "ref:skills")
	assert.ErrorIs(t, err, cache.ErrMiss)
	require.NoError(t, b.Del(ctx))
}

func TestIntegration_RedisBackendExpires(t *testing.T) {
	rdb := testinfra.Redis(t)
	b := cache.NewRedisBackend(rdb, "search")
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "jobs:featured", []byte(`[]`), time.Second))
	assert.Eventually(t, func() bool {
		_, err := b.Get(ctx, "jobs:featured")
		return errors.Is(err, cache.ErrMiss)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestIntegration_RedisRememberAndInvalidate(t *testing.T) {
	rdb := testinfra.Redis(t)
	ctx := context.Background()
	// Two instances sharing one Redis see each other's invalidations.
	a := cache.New(cache.NewRedisBackend(rdb, "search"), zerolog.Nop())
	b := cache.New(cache.NewRedisBackend(rdb, "search"), zerolog.Nop())
	version := 0
	load := func(context.Context) (int, error) {
		version++
		return version, nil
	}

	v, err := cache.Remember(ctx, a, "ref:categories", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = cache.Remember(ctx, b, "ref:categories", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v, "second instance reads the shared entry")

	require.NoError(t, b.Invalidate(ctx, "ref:categories"))
	v, err = cache.Remember(ctx, a, "ref:categories", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, version)
}
