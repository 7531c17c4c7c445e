package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-marketplace/internal/models"
)

func setupTestCache(t *testing.T) (*RedisCartCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCartCache(client, time.Minute), mr
}

func TestRedisCartCache_Miss(t *testing.T) {
	cache, _ := setupTestCache(t)

	lines, err := cache.Get(context.Background(), "nobody")

	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, lines)
}

func TestRedisCartCache_SetGetKeepsOwner(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	price := decimal.RequireFromString("49.90")
	line := &models.CartLine{
		ID:          uuid.New(),
		UserID:      "user-1",
		ServiceID:   uuid.New(),
		ServiceName: "Boat tour",
		Quantity:    2,
		UnitPrice:   &price,
	}

	require.NoError(t, cache.Set(ctx, "user-1", 0, []*models.CartLine{line}))
	assert.True(t, mr.Exists(cartKeyPrefix+"user-1"))
	assert.Equal(t, time.Minute, mr.TTL(cartKeyPrefix+"user-1"))

	got, err := cache.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, line.ID, got[0].ID)
	assert.Equal(t, "user-1", got[0].UserID)
	assert.Equal(t, "Boat tour", got[0].ServiceName)
	assert.True(t, price.Equal(*got[0].UnitPrice))
}

func TestRedisCartCache_EmptyCartIsAHit(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-2", 0, []*models.CartLine{}))

	got, err := cache.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCartCache_InvalidateAndExpiry(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user-3", 0, []*models.CartLine{{ID: uuid.New(), UserID: "user-3", Quantity: 1}}))
	require.NoError(t, cache.Invalidate(ctx, "user-3"))

	_, err := cache.Get(ctx, "user-3")
	assert.ErrorIs(t, err, ErrCacheMiss)

	version, err := cache.Version(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, cache.Set(ctx, "user-3", version, []*models.CartLine{{ID: uuid.New(), UserID: "user-3", Quantity: 1}}))
	mr.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "user-3")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCartCache_CorruptEntry(t *testing.T) {
	cache, mr := setupTestCache(t)

	require.NoError(t, mr.Set(cartKeyPrefix+"user-4", "{not json"))

	_, err := cache.Get(context.Background(), "user-4")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCartCache_SetAfterInvalidateIsDropped(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	// A reader takes the version, then a writer commits and invalidates
	// before the reader stores what it loaded.
	version, err := cache.Version(ctx, "user-5")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	require.NoError(t, cache.Invalidate(ctx, "user-5"))

	err = cache.Set(ctx, "user-5", version, []*models.CartLine{{ID: uuid.New(), UserID: "user-5", Quantity: 1}})
	assert.ErrorIs(t, err, ErrCacheStale)
	assert.False(t, mr.Exists(cartKeyPrefix+"user-5"))

	_, err = cache.Get(ctx, "user-5")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.True(t, mr.TTL(cartVersionKeyPrefix+"user-5") > 0)
}
