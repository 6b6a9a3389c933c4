package backend

import (
	"bytes"
	"io"
	"sync/atomic"

	"github.com/iotaledger/kelvin/digest"
	"github.com/iotaledger/kelvin/kv"
)

// KVStore adapts any kv.Store into a content-addressed Backend, keying
// entries by raw digest bytes. This is what adaptors/badger and
// adaptors/hive sit on top of: they only need to produce a kv.Store, and
// get Backend for free.
type KVStore struct {
	store kv.Store
	size  int64
}

// NewKVStore wraps store as a Backend.
func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{store: store}
}

func (k *KVStore) Get(d digest.Digest) (io.ReadCloser, error) {
	v := k.store.Get(d[:])
	if v == nil {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(v)), nil
}

func (k *KVStore) Put(d digest.Digest, data []byte) (PutResult, error) {
	if k.store.Has(d[:]) {
		return AlreadyThere, nil
	}
	k.store.Set(d[:], data)
	atomic.AddInt64(&k.size, int64(len(data)))
	return Ok, nil
}

// Flush is a no-op: Put writes through the wrapped store directly, so
// durability is whatever the concrete kv.Store already guarantees on Set.
func (k *KVStore) Flush() error {
	return nil
}

func (k *KVStore) Size() int64 {
	return atomic.LoadInt64(&k.size)
}
