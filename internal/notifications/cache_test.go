package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*UnreadCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewUnreadCache(client, time.Minute), mr
}

func TestUnreadCache_SetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "user-1")
	assert.False(t, ok)

	cache.Set(ctx, "user-1", 7)

	count, ok := cache.Get(ctx, "user-1")
	require.True(t, ok)
	assert.Equal(t, 7, count)
}

func TestUnreadCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", 2)
	cache.Invalidate(ctx, "user-1")

	_, ok := cache.Get(ctx, "user-1")
	assert.False(t, ok)
}

func TestUnreadCache_InvalidateAll(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", 1)
	cache.Set(ctx, "user-2", 2)
	mr.Set("other:key", "keep") // unrelated keys must survive

	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok := cache.Get(ctx, "user-1")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "user-2")
	assert.False(t, ok)
	assert.True(t, mr.Exists("other:key"))
}

func TestUnreadCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "user-1", 5)
	mr.FastForward(2 * time.Minute)

	_, ok := cache.Get(ctx, "user-1")
	assert.False(t, ok)
}
