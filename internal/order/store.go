package order

import (
	"fmt"
	"sync"

	"webshop/internal/model"
	"webshop/internal/state"
)

// TableName is the state table orders are kept in.
const TableName = "orders"

// Store persists orders keyed by a sequential id that is never reused.
type Store struct {
	mu     sync.Mutex
	table  state.Table
	nextID int64
}

// NewStore resumes numbering after the highest id already in table.
func NewStore(table state.Table) (*Store, error) {
	last, err := state.MaxID(table)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	return &Store{table: table, nextID: last + 1}, nil
}

// Save assigns the next id when o has none, then stores o under its id,
// overwriting any previous version.
func (s *Store) Save(o model.Order) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned := o.ID == 0
	if assigned {
		o.ID = s.nextID
	}
	if err := state.PutJSON(s.table, o.ID, o); err != nil {
		return model.Order{}, fmt.Errorf("save order: %w", err)
	}
	if o.ID >= s.nextID {
		s.nextID = o.ID + 1
	}
	return o, nil
}

// FindByID returns state.ErrNotFound for an unknown id.
func (s *Store) FindByID(id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.GetJSON[model.Order](s.table, id)
}

// ListAll returns orders in id order, which is also insertion order.
func (s *Store) ListAll() ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.ListJSON[model.Order](s.table)
}
