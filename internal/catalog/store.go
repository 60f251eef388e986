package catalog

import (
	"fmt"
	"sync"

	"webshop/internal/model"
	"webshop/internal/state"
)

// TableName is the state table products are kept in.
const TableName = "products"

// ProductStore keeps products keyed by a sequential id. A single mutex
// serializes every access, including the id counter.
type ProductStore struct {
	mu     sync.Mutex
	table  state.Table
	nextID int64
}

// NewProductStore continues numbering after the highest id already in table.
func NewProductStore(table state.Table) (*ProductStore, error) {
	last, err := state.MaxID(table)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	return &ProductStore{table: table, nextID: last + 1}, nil
}

// Insert assigns the next id to p and stores it.
func (s *ProductStore) Insert(p model.Product) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Stock < 0 {
		return model.Product{}, ErrNegativeStock
	}
	p.ID = s.nextID
	if err := state.PutJSON(s.table, p.ID, p); err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}
	s.nextID++
	return p, nil
}

// FindByID returns state.ErrNotFound for an unknown id.
func (s *ProductStore) FindByID(id int64) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.GetJSON[model.Product](s.table, id)
}

// ListAll returns products in insertion order.
func (s *ProductStore) ListAll() ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.ListJSON[model.Product](s.table)
}

// UpdateStock overwrites the stock of product id and returns the updated product.
func (s *ProductStore) UpdateStock(id int64, newStock int) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if newStock < 0 {
		return model.Product{}, fmt.Errorf("product %d: %w", id, ErrNegativeStock)
	}
	p, err := state.GetJSON[model.Product](s.table, id)
	if err != nil {
		return model.Product{}, fmt.Errorf("cannot update stock for product id %d: %w", id, err)
	}
	p.Stock = newStock
	if err := state.PutJSON(s.table, id, p); err != nil {
		return model.Product{}, fmt.Errorf("update stock: %w", err)
	}
	return p, nil
}

// Reset empties the store and restarts numbering at 1.
func (s *ProductStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.table.Truncate(); err != nil {
		return fmt.Errorf("truncate products: %w", err)
	}
	s.nextID = 1
	return nil
}
