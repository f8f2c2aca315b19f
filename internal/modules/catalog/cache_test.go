package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, next Repository) (*CachedRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCachedRepository(next, client, time.Minute, logging.Discard()), mr
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	repo := &memRepo{products: sampleProducts()}
	cache, mr := setupCache(t, repo)
	ctx := context.Background()

	first, err := cache.GetByBarcode(ctx, "7790001")
	require.NoError(t, err)
	second, err := cache.GetByBarcode(ctx, "7790001")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Price.Equal(second.Price))
	assert.True(t, mr.Exists("catalog:barcode:7790001"))
	assert.Equal(t, time.Minute, mr.TTL("catalog:barcode:7790001"))
}

func TestCachedRepository_NotFoundIsNotCached(t *testing.T) {
	repo := &memRepo{products: sampleProducts()}
	cache, mr := setupCache(t, repo)

	_, err := cache.GetByBarcode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.False(t, mr.Exists("catalog:barcode:missing"))
}

func TestCachedRepository_Invalidate(t *testing.T) {
	products := sampleProducts()
	repo := &memRepo{products: products}
	cache, mr := setupCache(t, repo)
	ctx := context.Background()

	_, err := cache.List(ctx)
	require.NoError(t, err)
	_, err = cache.GetByID(ctx, products[0].ID)
	require.NoError(t, err)
	_, err = cache.GetByBarcode(ctx, products[0].Barcode)
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, products[0].ID))

	assert.False(t, mr.Exists(listKey))
	assert.False(t, mr.Exists("catalog:product:"+products[0].ID.String()))
	assert.False(t, mr.Exists("catalog:barcode:"+products[0].Barcode))
}

func TestCachedRepository_RedisDownFallsThrough(t *testing.T) {
	repo := &memRepo{products: sampleProducts()}
	cache, mr := setupCache(t, repo)
	mr.Close()

	list, err := cache.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestService_StockChangedInvalidatesCache(t *testing.T) {
	products := sampleProducts()
	repo := &memRepo{products: products}
	cache, mr := setupCache(t, repo)
	svc := NewService(cache, logging.Discard())
	ctx := context.Background()

	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(listKey))

	svc.StockChanged(ctx, products[1].ID)
	assert.False(t, mr.Exists(listKey))
}
