package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inventory-order-system/internal/catalog/application"
	"github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/platform/memory"
	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

type countingCache struct {
	products    []domain.Product
	hit         bool
	gets        int
	invalidated int
	failGet     bool
	gen         int64
}

func (c *countingCache) Get(context.Context) ([]domain.Product, bool, error) {
	c.gets++
	if c.failGet {
		return nil, false, errors.New("redis down")
	}
	return c.products, c.hit, nil
}

func (c *countingCache) Generation(context.Context) (int64, error) { return c.gen, nil }

func (c *countingCache) Set(_ context.Context, gen int64, products []domain.Product) error {
	if gen != c.gen {
		return nil
	}
	c.products, c.hit = products, true
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.products, c.hit = nil, false
	c.invalidated++
	c.gen++
	return nil
}

func newService(cache application.ProductCache) (*application.Service, *memory.Store) {
	store := memory.New()
	return application.NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), store, cache), store
}

func tent() domain.NewProduct {
	return domain.NewProduct{Name: "Tent", Description: "4-person camping tent", Price: decimal.RequireFromString("250.00"), Stock: 15}
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)

	p, err := svc.CreateProduct(ctx, domain.NewProduct{Name: "  Tent ", Description: "waterproof", Price: decimal.RequireFromString("250"), Stock: 15})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, "Tent", p.Name)

	_, err = svc.CreateProduct(ctx, domain.NewProduct{Name: "TENT", Description: "other", Price: decimal.RequireFromString("1"), Stock: 1})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))
	assert.EqualError(t, err, "a product with the same name already exists")

	_, err = svc.CreateProduct(ctx, domain.NewProduct{Name: "Stove", Description: "gas", Price: decimal.Zero, Stock: 1})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)
	p, err := svc.CreateProduct(ctx, tent())
	require.NoError(t, err)

	price := decimal.RequireFromString("199.99")
	got, err := svc.UpdateProduct(ctx, p.ID, domain.Patch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, "199.99", got.Price.StringFixed(2))
	assert.Equal(t, 15, got.Stock)

	stock := 0
	got, err = svc.UpdateProduct(ctx, p.ID, domain.Patch{Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
	assert.Equal(t, "199.99", got.Price.StringFixed(2))

	_, err = svc.UpdateProduct(ctx, p.ID, domain.Patch{})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	negative := -3
	_, err = svc.UpdateProduct(ctx, p.ID, domain.Patch{Stock: &negative})
	assert.Equal(t, apperr.Invalid, apperr.KindOf(err))

	_, err = svc.UpdateProduct(ctx, uuid.New(), domain.Patch{Stock: &stock})
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)
	p, err := svc.CreateProduct(ctx, tent())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, p.ID))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(svc.DeleteProduct(ctx, p.ID)))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	_, err = svc.CreateProduct(ctx, tent())
	assert.NoError(t, err, "a deleted product's name is free again")
}

func TestListProductsUsesCache(t *testing.T) {
	ctx := context.Background()
	cache := &countingCache{}
	svc, store := newService(cache)
	_, err := svc.CreateProduct(ctx, tent())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)

	first, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.True(t, cache.hit)

	// Writes that bypass the service are invisible until the cache is invalidated.
	require.NoError(t, store.Create(ctx, domain.Product{ID: uuid.New(), Name: "Stove", Description: "gas", Price: decimal.RequireFromString("60"), Stock: 5}))
	cached, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	stock := 3
	_, err = svc.UpdateProduct(ctx, first[0].ID, domain.Patch{Stock: &stock})
	require.NoError(t, err)
	fresh, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
	assert.Equal(t, 3, fresh[0].Stock)
}

func TestListProductsFallsBackWhenCacheFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(&countingCache{failGet: true})
	_, err := svc.CreateProduct(ctx, tent())
	require.NoError(t, err)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(nil)

	n, err := svc.SeedIfEmpty(ctx, application.DemoCatalog())
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	n, err = svc.SeedIfEmpty(ctx, application.DemoCatalog())
	require.NoError(t, err)
	assert.Zero(t, n)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 10)
	assert.Equal(t, "Hiking Boots", products[0].Name, "listing keeps creation order")
	assert.Equal(t, "129.99", products[0].Price.StringFixed(2))
}

// listHook runs after the underlying List returns, standing in for a write
// that commits while the listing is on its way to the cache.
type listHook struct {
	application.ProductRepository
	after func()
}

func (r listHook) List(ctx context.Context) ([]domain.Product, error) {
	products, err := r.ProductRepository.List(ctx)
	if r.after != nil {
		r.after()
	}
	return products, err
}

func TestListProductsDoesNotCacheListingRacedByWrite(t *testing.T) {
	ctx := context.Background()
	cache := &countingCache{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	hook := &listHook{ProductRepository: store}
	svc := application.NewService(log, hook, cache)

	p, err := svc.CreateProduct(ctx, tent())
	require.NoError(t, err)

	stock := 3
	hook.after = func() {
		hook.after = nil
		_, err := svc.UpdateProduct(ctx, p.ID, domain.Patch{Stock: &stock})
		require.NoError(t, err)
	}
	stale, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, stale[0].Stock)
	assert.False(t, cache.hit, "listing loaded before the update must not be cached")

	fresh, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh[0].Stock)
}
