package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned by Table.Get for an unknown id.
var ErrNotFound = errors.New("record not found")

// Table is an ordered collection of encoded records keyed by a positive id.
// Range visits records in ascending id order.
type Table interface {
	Get(id int64) ([]byte, error)
	Put(id int64, val []byte) error
	Range(fn func(id int64, val []byte) error) error
	Truncate() error
}

// DB hands out named tables that share one backend.
type DB interface {
	Table(name string) (Table, error)
	Close() error
}

// GetJSON loads and decodes record id from t.
func GetJSON[T any](t Table, id int64) (T, error) {
	var out T
	b, err := t.Get(id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode record %d: %w", id, err)
	}
	return out, nil
}

// PutJSON encodes v and stores it under id.
func PutJSON(t Table, id int64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %d: %w", id, err)
	}
	return t.Put(id, b)
}

// ListJSON decodes every record of t in id order.
func ListJSON[T any](t Table) ([]T, error) {
	var out []T
	err := t.Range(func(id int64, val []byte) error {
		var v T
		if err := json.Unmarshal(val, &v); err != nil {
			return fmt.Errorf("decode record %d: %w", id, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// MaxID returns the highest id stored in t, or 0 when t is empty.
func MaxID(t Table) (int64, error) {
	var last int64
	err := t.Range(func(id int64, _ []byte) error {
		if id > last {
			last = id
		}
		return nil
	})
	return last, err
}

// MemoryDB keeps every table in process memory.
type MemoryDB struct {
	mu     sync.Mutex
	tables map[string]*MemoryTable
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{tables: make(map[string]*MemoryTable)}
}

func (m *MemoryDB) Table(name string) (Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		t = NewMemoryTable()
		m.tables[name] = t
	}
	return t, nil
}

func (m *MemoryDB) Close() error { return nil }

// MemoryTable is a thread-safe map table.
type MemoryTable struct {
	mu   sync.RWMutex
	data map[int64][]byte
}

func NewMemoryTable() *MemoryTable {
	return &MemoryTable{data: make(map[int64][]byte)}
}

func (t *MemoryTable) Get(id int64) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *MemoryTable) Put(id int64, val []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[id] = append([]byte(nil), val...)
	return nil
}

func (t *MemoryTable) Range(fn func(id int64, val []byte) error) error {
	t.mu.RLock()
	ids := make([]int64, 0, len(t.data))
	for id := range t.data {
		ids = append(ids, id)
	}
	vals := make(map[int64][]byte, len(t.data))
	for _, id := range ids {
		vals[id] = t.data[id]
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := fn(id, vals[id]); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (t *MemoryTable) Truncate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[int64][]byte)
	return nil
}
