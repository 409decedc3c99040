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
)

type item struct {
	Name string `json:"name"`
}

func newCache(t *testing.T) *cache.Cache {
	t.Helper()
	b, err := cache.NewMemoryBackend()
	require.NoError(t, err)
	c := cache.New(b, zerolog.Nop())
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRemember_LoadsOnceThenHits(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]item, error) {
		calls++
		return []item{{Name: "engineering"}}, nil
	}

	first, err := cache.Remember(ctx, c, "ref:categories", time.Minute, load)
	require.NoError(t, err)
	second, err := cache.Remember(ctx, c, "ref:categories", time.Minute, load)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestInvalidate_ForcesReload(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	version := 0
	load := func(context.Context) (int, error) {
		version++
		return version, nil
	}

	v, err := cache.Remember(ctx, c, "ref:skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	require.NoError(t, c.Invalidate(ctx, "ref:skills"))

	v, err = cache.Remember(ctx, c, "ref:skills", time.Hour, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestInvalidate_MissingKeyIsNotAnError(t *testing.T) {
	c := newCache(t)
	assert.NoError(t, c.Invalidate(context.Background(), "never-set"))
}

func TestRemember_LoadErrorIsNotCached(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	boom := errors.New("db down")

	_, err := cache.Remember(ctx, c, "jobs:featured:10", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := cache.Remember(ctx, c, "jobs:featured:10", time.Minute, func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestMemoryBackend_TTLExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for badger TTL expiry")
	}
	b, err := cache.NewMemoryBackend()
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Second))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(2100 * time.Millisecond)
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrMiss)
}
