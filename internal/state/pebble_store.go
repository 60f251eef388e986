package state

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleDB implements DB using PebbleDB. Every table lives in one keyspace.
type PebbleDB struct {
	db *pebble.DB
}

func NewPebbleDB(dir string) (*PebbleDB, error) {
	opts := &pebble.Options{
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 2 },
		L0CompactionThreshold:    4,
		L0StopWritesThreshold:    12,
		WALBytesPerSync:          1 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleDB{db: d}, nil
}

func (p *PebbleDB) Close() error { return p.db.Close() }

func (p *PebbleDB) Table(name string) (Table, error) {
	return &pebbleTable{db: p.db, prefix: tablePrefix(name), upper: tableUpperBound(name)}, nil
}

type pebbleTable struct {
	db     *pebble.DB
	prefix []byte
	upper  []byte
}

func (t *pebbleTable) Get(id int64) ([]byte, error) {
	v, closer, err := t.db.Get(recordKey(t.prefix, id))
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (t *pebbleTable) Put(id int64, val []byte) error {
	// WAL is kept; the write is not fsynced individually.
	return t.db.Set(recordKey(t.prefix, id), val, pebble.NoSync)
}

func (t *pebbleTable) Range(fn func(id int64, val []byte) error) error {
	it, err := t.db.NewIter(&pebble.IterOptions{LowerBound: t.prefix, UpperBound: t.upper})
	if err != nil {
		return fmt.Errorf("pebble iter: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		id := recordID(t.prefix, it.Key())
		v := append([]byte(nil), it.Value()...)
		if err := fn(id, v); err != nil {
			return err
		}
	}
	return it.Error()
}

func (t *pebbleTable) Truncate() error {
	return t.db.DeleteRange(t.prefix, t.upper, pebble.Sync)
}
