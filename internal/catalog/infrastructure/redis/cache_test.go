package redis

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

	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
)

func TestProductCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewProductCache(rdb, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	products := []domain.Product{
		{ID: uuid.New(), Name: "Tent", Description: "Two person", Price: decimal.RequireFromString("250.00"), Stock: 15},
		{ID: uuid.New(), Name: "Mouse", Description: "Wireless", Price: decimal.RequireFromString("25.50"), Stock: 200},
	}
	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, gen, products))
	assert.Equal(t, time.Minute, mr.TTL(ProductsKey))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	for i := range products {
		assert.Equal(t, products[i].ID, got[i].ID)
		assert.Equal(t, products[i].Name, got[i].Name)
		assert.True(t, products[i].Price.Equal(got[i].Price))
		assert.Equal(t, products[i].Stock, got[i].Stock)
	}

	require.NoError(t, cache.Invalidate(ctx))
	assert.False(t, mr.Exists(ProductsKey))
}

func TestProductCacheDropsListingLoadedBeforeInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewProductCache(rdb, time.Minute)
	ctx := context.Background()
	stale := []domain.Product{{ID: uuid.New(), Name: "Tent", Price: decimal.RequireFromString("250.00"), Stock: 15}}

	gen, err := cache.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx))

	require.NoError(t, cache.Set(ctx, gen, stale))
	assert.False(t, mr.Exists(ProductsKey), "listing read before the invalidation must not be cached")

	gen, err = cache.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
	require.NoError(t, cache.Set(ctx, gen, stale))
	assert.True(t, mr.Exists(ProductsKey))
}

func TestProductCacheSurfacesRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, ok, err := NewProductCache(rdb, time.Minute).Get(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}
