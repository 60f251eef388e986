package state

import (
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerDB implements DB using BadgerDB.
type BadgerDB struct {
	db *badger.DB
}

func NewBadgerDB(dir string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir)).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Close() error { return b.db.Close() }

func (b *BadgerDB) Table(name string) (Table, error) {
	return &badgerTable{db: b.db, prefix: tablePrefix(name)}, nil
}

type badgerTable struct {
	db     *badger.DB
	prefix []byte
}

func (t *badgerTable) Get(id int64) ([]byte, error) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(t.prefix, id))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (t *badgerTable) Put(id int64, val []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(t.prefix, id), val)
	})
}

func (t *badgerTable) Range(fn func(id int64, val []byte) error) error {
	return t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(t.prefix); it.ValidForPrefix(t.prefix); it.Next() {
			item := it.Item()
			id := recordID(t.prefix, item.Key())
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(id, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *badgerTable) Truncate() error {
	return t.db.DropPrefix(t.prefix)
}
