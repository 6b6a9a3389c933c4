// Package backend defines the content-addressed byte store the tree engine
// persists through, and ships three implementations: an in-memory map, an
// append-only file paired with an index, and KVStore, which turns any
// kv.Store into a Backend. The kv.Store adaptors for BadgerDB and hive.go
// (adaptors/badger, adaptors/hive) live in sibling packages so this
// package stays free of their dependencies.
package backend

import (
	"io"

	"github.com/iotaledger/kelvin/digest"
)

// PutResult reports whether Put wrote new bytes or found the digest
// already present (backends are idempotent: writing the same digest twice
// must not duplicate storage).
type PutResult int

const (
	Ok PutResult = iota
	AlreadyThere
)

// Backend is the contract every content-addressed byte store implements.
// The core treats all implementations uniformly: a Store holds an ordered
// stack of Backends and never knows which concrete kind it is talking to.
type Backend interface {
	// Get returns a reader over the bytes previously Put under digest.
	// Returns ErrNotFound if the digest is unknown to this backend.
	Get(d digest.Digest) (io.ReadCloser, error)
	// Put stores bytes under digest. Idempotent.
	Put(d digest.Digest, data []byte) (PutResult, error)
	// Flush durably commits pending writes. A no-op for in-memory backends.
	Flush() error
	// Size returns an approximate byte count, for diagnostics only.
	Size() int64
}
