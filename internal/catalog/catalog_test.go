package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/state"
)

func newStore(t *testing.T) *ProductStore {
	t.Helper()
	tbl, _ := state.NewMemoryDB().Table(TableName)
	s, err := NewProductStore(tbl)
	require.NoError(t, err)
	return s
}

func testProduct() model.Product {
	return model.Product{Name: "Test Product", Description: "Description", Price: decimal.NewFromInt(100), ImageURL: "http://test.jpg", Stock: 10}
}

func TestProductStore_SequentialIDsAndOrder(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		p, err := s.Insert(testProduct())
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), p.ID)
	}
	all, err := s.ListAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, p := range all {
		assert.Equal(t, int64(i+1), p.ID)
	}
}

func TestProductStore_ContinuesAfterExistingIDs(t *testing.T) {
	tbl := state.NewMemoryTable()
	require.NoError(t, state.PutJSON(tbl, 4, model.Product{ID: 4, Name: "old"}))
	s, err := NewProductStore(tbl)
	require.NoError(t, err)
	p, err := s.Insert(testProduct())
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ID)
}

func TestProductStore_UpdateStock(t *testing.T) {
	s := newStore(t)
	p, _ := s.Insert(testProduct())

	updated, err := s.UpdateStock(p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)

	got, err := s.FindByID(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)

	_, err = s.UpdateStock(999, 1)
	assert.ErrorIs(t, err, state.ErrNotFound)

	_, err = s.UpdateStock(p.ID, -1)
	assert.ErrorIs(t, err, ErrNegativeStock)
	got, _ = s.FindByID(p.ID)
	assert.Equal(t, 5, got.Stock, "rejected update must not change stock")
}

func TestProductStore_FindUnknown(t *testing.T) {
	s := newStore(t)
	_, err := s.FindByID(42)
	assert.ErrorIs(t, err, state.ErrNotFound)
}

// fakeCache records writes and serves whatever it was last given.
type fakeCache struct {
	products []model.Product
	puts     []model.Product
	readErr  error
}

func (f *fakeCache) GetAll(context.Context) ([]model.Product, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.products == nil {
		return nil, ErrCacheMiss
	}
	return f.products, nil
}

func (f *fakeCache) PutAll(_ context.Context, products []model.Product) error {
	f.products = append([]model.Product(nil), products...)
	return nil
}

func (f *fakeCache) Put(_ context.Context, p model.Product) error {
	f.puts = append(f.puts, p)
	return nil
}

func TestService_SeedDefaultCatalog(t *testing.T) {
	m := metrics.NewRegistry()
	cache := &fakeCache{}
	svc := NewService(newStore(t), cache, m)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx, DefaultCatalog()))
	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 8)
	assert.Equal(t, "Laptop", products[0].Name)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, "External SSD", products[7].Name)
	assert.Equal(t, int64(8), products[7].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12999.99")))
	assert.Equal(t, float64(15), testutil.ToFloat64(m.Stock.WithLabelValues("1")))

	// seeding again restarts at id 1 and drops the old rows
	require.NoError(t, svc.Seed(ctx, DefaultCatalog()[:2]))
	p, err := svc.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Smartphone", p.Name)
	_, err = svc.GetByID(ctx, 3)
	assert.Error(t, err)
}

func TestService_GetByID_NotFound(t *testing.T) {
	svc := NewService(newStore(t), nil, metrics.NewRegistry())
	_, err := svc.GetByID(context.Background(), 999)

	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(999), nf.ProductID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, "Product not found with id: 999", err.Error())
}

func TestService_UpdateStockWritesThrough(t *testing.T) {
	m := metrics.NewRegistry()
	cache := &fakeCache{}
	store := newStore(t)
	p, _ := store.Insert(testProduct())
	svc := NewService(store, cache, m)

	require.NoError(t, svc.UpdateStock(context.Background(), p.ID, 5))
	require.Len(t, cache.puts, 1)
	assert.Equal(t, 5, cache.puts[0].Stock)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.Stock.WithLabelValues("1")))

	err := svc.UpdateStock(context.Background(), 999, 5)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestService_ListProducts_CacheHitAndFallback(t *testing.T) {
	m := metrics.NewRegistry()
	store := newStore(t)
	_, _ = store.Insert(testProduct())

	cache := &fakeCache{}
	svc := NewService(store, cache, m)
	ctx := context.Background()

	// miss -> store -> cache populated
	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Len(t, cache.products, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheMisses))

	// hit
	_, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheHits))

	// broken cache still serves from the store
	cache.readErr = errors.New("connection refused")
	products, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}
