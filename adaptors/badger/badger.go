// Package badger adapts github.com/dgraph-io/badger/v4 into the kv.Store
// contract: a thin wrapper performing one transaction per call, plus a
// buffered batch writer for bulk updates.
package badger

import (
	"errors"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/iotaledger/kelvin/kv"
	"golang.org/x/xerrors"
)

// DB wraps a *badger.DB as a kv.Store.
type DB struct {
	db     *badger.DB
	closed atomic.Bool
}

// Open opens (creating if necessary) a badger database at dir.
func Open(dir string) (*DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	raw, err := badger.Open(opts)
	if err != nil {
		return nil, xerrors.Errorf("opening badger db: %w", err)
	}
	return &DB{db: raw}, nil
}

// Close closes the underlying database. Further calls on the wrapper
// become no-ops rather than panicking.
func (d *DB) Close() error {
	d.closed.Store(true)
	return d.db.Close()
}

func (d *DB) Get(key []byte) []byte {
	if d.closed.Load() {
		return nil
	}
	var ret []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	mustNoErr(err)
	return ret
}

func (d *DB) Has(key []byte) bool {
	if d.closed.Load() {
		return false
	}
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false
	}
	mustNoErr(err)
	return true
}

func (d *DB) Set(key, value []byte) {
	if d.closed.Load() {
		return
	}
	err := d.db.Update(func(txn *badger.Txn) error {
		if len(value) == 0 {
			return txn.Delete(key)
		}
		return txn.Set(key, value)
	})
	mustNoErr(err)
}

func (d *DB) Iterate(fun func(k, v []byte) bool) {
	d.iterate(nil, fun)
}

func (d *DB) IterateKeys(fun func(k []byte) bool) {
	d.iterate(nil, func(k, _ []byte) bool { return fun(k) })
}

// Iterator scopes iteration to keys under prefix, implementing
// kv.Traversable.
func (d *DB) Iterator(prefix []byte) kv.Iterator {
	return &iterator{db: d, prefix: prefix}
}

type iterator struct {
	db     *DB
	prefix []byte
}

func (it *iterator) Iterate(fun func(k, v []byte) bool) {
	it.db.iterate(it.prefix, fun)
}

func (it *iterator) IterateKeys(fun func(k []byte) bool) {
	it.db.iterate(it.prefix, func(k, _ []byte) bool { return fun(k) })
}

const iteratorPrefetchSize = 10

func (d *DB) iterate(prefix []byte, fun func(k, v []byte) bool) {
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = iteratorPrefetchSize

		dbIt := txn.NewIterator(opts)
		defer dbIt.Close()

		exit := false
		for dbIt.Seek(prefix); !exit && dbIt.ValidForPrefix(prefix); dbIt.Next() {
			err := dbIt.Item().Value(func(val []byte) error {
				exit = !fun(dbIt.Item().KeyCopy(nil), val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if !d.closed.Load() {
		mustNoErr(err)
	}
}

// BatchedWriter implements kv.BatchedUpdatable, buffering Set calls into a
// single deduplicated write applied atomically on Commit.
func (d *DB) BatchedWriter() kv.BatchedWriter {
	return &batch{db: d, mutations: make(map[string][]byte)}
}

type batch struct {
	db        *DB
	mutations map[string][]byte
}

func (b *batch) Set(key, value []byte) {
	b.mutations[string(key)] = value
}

func (b *batch) Commit() error {
	return b.db.db.Update(func(txn *badger.Txn) error {
		if b.db.closed.Load() {
			return xerrors.New("badger: database is closed")
		}
		for k, v := range b.mutations {
			var err error
			if len(v) == 0 {
				err = txn.Delete([]byte(k))
			} else {
				err = txn.Set([]byte(k), v)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
