// Package hive adapts github.com/iotaledger/hive.go/core's kvstore into
// the kv.Store contract: a prefix-scoped view over a shared
// kvstore.KVStore, plus a batched writer backed by
// kvstore.BatchedMutations.
package hive

import (
	"errors"

	"github.com/iotaledger/hive.go/core/kvstore"
	"github.com/iotaledger/kelvin/kv"
)

// Store maps a prefix partition of a hive.go KVStore to kv.Store.
type Store struct {
	kvs    kvstore.KVStore
	prefix []byte
}

// New wraps kvs, scoping every key under prefix.
func New(kvs kvstore.KVStore, prefix []byte) *Store {
	return &Store{kvs: kvs, prefix: prefix}
}

func makeKey(prefix, k []byte) []byte {
	if len(prefix) == 0 {
		return k
	}
	out := make([]byte, 0, len(prefix)+len(k))
	out = append(out, prefix...)
	out = append(out, k...)
	return out
}

func (s *Store) Get(key []byte) []byte {
	v, err := s.kvs.Get(makeKey(s.prefix, key))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	mustNoErr(err)
	return v
}

func (s *Store) Has(key []byte) bool {
	ok, err := s.kvs.Has(makeKey(s.prefix, key))
	mustNoErr(err)
	return ok
}

func (s *Store) Set(key, value []byte) {
	var err error
	if len(value) == 0 {
		err = s.kvs.Delete(makeKey(s.prefix, key))
	} else {
		err = s.kvs.Set(makeKey(s.prefix, key), value)
	}
	mustNoErr(err)
}

func (s *Store) Iterate(fun func(k, v []byte) bool) {
	err := s.kvs.Iterate(s.prefix, func(key kvstore.Key, value kvstore.Value) bool {
		return fun(key[len(s.prefix):], value)
	})
	mustNoErr(err)
}

func (s *Store) IterateKeys(fun func(k []byte) bool) {
	err := s.kvs.IterateKeys(s.prefix, func(key kvstore.Key) bool {
		return fun(key[len(s.prefix):])
	})
	mustNoErr(err)
}

// Iterator scopes iteration to keys under subPrefix (relative to s's own
// prefix), implementing kv.Traversable.
func (s *Store) Iterator(subPrefix []byte) kv.Iterator {
	return New(s.kvs, makeKey(s.prefix, subPrefix))
}

// BatchedWriter implements kv.BatchedUpdatable over hive.go's
// BatchedMutations, buffering writes for a single atomic Commit.
func (s *Store) BatchedWriter() kv.BatchedWriter {
	return &batchWriter{prefix: s.prefix, kvs: s.kvs}
}

type batchWriter struct {
	prefix  []byte
	kvs     kvstore.KVStore
	batch   kvstore.BatchedMutations
	pending bool
}

func (b *batchWriter) ensureBatch() {
	if b.pending {
		return
	}
	batch, err := b.kvs.Batched()
	mustNoErr(err)
	b.batch = batch
	b.pending = true
}

func (b *batchWriter) Set(key, value []byte) {
	b.ensureBatch()
	var err error
	if len(value) > 0 {
		err = b.batch.Set(makeKey(b.prefix, key), value)
	} else {
		err = b.batch.Delete(makeKey(b.prefix, key))
	}
	mustNoErr(err)
}

func (b *batchWriter) Commit() error {
	if !b.pending {
		return nil
	}
	if err := b.batch.Commit(); err != nil {
		return err
	}
	if err := b.kvs.Flush(); err != nil {
		return err
	}
	b.pending = false
	return nil
}

func mustNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
