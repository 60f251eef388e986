package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"webshop/internal/metrics"
	"webshop/internal/model"
	"webshop/internal/state"
)

// Service is the product lookup capability used by the order workflow and
// the catalog endpoints.
type Service struct {
	store   *ProductStore
	cache   Cache
	metrics *metrics.Registry
}

// NewService wires a store with an optional cache; a nil cache never hits.
func NewService(store *ProductStore, cache Cache, m *metrics.Registry) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{store: store, cache: cache, metrics: m}
}

// Seed replaces the catalog with products, numbering them from 1.
func (s *Service) Seed(ctx context.Context, products []model.Product) error {
	if err := s.store.Reset(); err != nil {
		return err
	}
	seeded := make([]model.Product, 0, len(products))
	for _, p := range products {
		stored, err := s.store.Insert(p)
		if err != nil {
			return fmt.Errorf("seed %q: %w", p.Name, err)
		}
		seeded = append(seeded, stored)
		s.observeStock(stored)
	}
	if err := s.cache.PutAll(ctx, seeded); err != nil {
		log.Printf("catalog: cache populate after seed failed: %v", err)
	}
	log.Printf("catalog: seeded %d products", len(seeded))
	return nil
}

// GetByID always reads the store; the cache is never consulted for stock checks.
func (s *Service) GetByID(_ context.Context, id int64) (model.Product, error) {
	p, err := s.store.FindByID(id)
	if errors.Is(err, state.ErrNotFound) {
		return model.Product{}, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("lookup product %d: %w", id, err)
	}
	return p, nil
}

// UpdateStock overwrites the stock of a product and writes it through to the cache.
func (s *Service) UpdateStock(ctx context.Context, id int64, newStock int) error {
	p, err := s.store.UpdateStock(id, newStock)
	if errors.Is(err, state.ErrNotFound) {
		return &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return err
	}
	s.observeStock(p)
	if err := s.cache.Put(ctx, p); err != nil {
		log.Printf("catalog: cache write for product %d failed: %v", id, err)
	}
	return nil
}

// ListProducts serves from the cache and falls back to the store on a miss,
// repopulating the cache afterwards.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.cache.GetAll(ctx)
	if err == nil {
		s.metrics.CacheHits.Inc()
		return products, nil
	}
	s.metrics.CacheMisses.Inc()
	if !errors.Is(err, ErrCacheMiss) {
		log.Printf("catalog: cache read failed, falling back to store: %v", err)
	}
	products, err = s.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if err := s.cache.PutAll(ctx, products); err != nil {
		log.Printf("catalog: cache populate failed: %v", err)
	}
	return products, nil
}

func (s *Service) observeStock(p model.Product) {
	s.metrics.Stock.WithLabelValues(strconv.FormatInt(p.ID, 10)).Set(float64(p.Stock))
}
