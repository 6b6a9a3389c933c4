// Package store holds the ordered stack of content-addressed backend
// generations the tree engine persists through, plus the Sink/Source
// streaming codec glue and durable Snapshot handles.
package store

import (
	"io"
	"sync"

	"github.com/iotaledger/kelvin/backend"
	"github.com/iotaledger/kelvin/digest"
	"golang.org/x/xerrors"
)

// MaxGenerations bounds the generation stack.
const MaxGenerations = 8

// Store is the ordered stack of Backend generations content is persisted
// to and restored from. Generation 0 is always the write target; restores
// probe generations in order and return the first hit. Safe for concurrent
// use.
type Store struct {
	mu          sync.RWMutex
	generations []backend.Backend
}

// New creates a Store whose sole, writable generation is b.
func New(b backend.Backend) *Store {
	return &Store{generations: []backend.Backend{b}}
}

// Volatile creates a Store backed by a single in-memory generation.
func Volatile() *Store {
	return New(backend.NewMem())
}

// PushGeneration prepends b as the new generation 0: subsequent writes
// land in b only, and reads probe b first, then the older generations in
// order. This mirrors layering an in-memory overlay in front of a
// persisted generation during, e.g., a staged migration. Returns an error
// once MaxGenerations generations are stacked.
func (s *Store) PushGeneration(b backend.Backend) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.generations) >= MaxGenerations {
		return xerrors.Errorf("store: generation stack full (max %d)", MaxGenerations)
	}
	s.generations = append([]backend.Backend{b}, s.generations...)
	return nil
}

// put writes bytes under digest into the first (writable) generation.
func (s *Store) put(d digest.Digest, data []byte) (backend.PutResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.generations) == 0 {
		return backend.Ok, xerrors.New("store: no generations configured")
	}
	return s.generations[0].Put(d, data)
}

// get probes every generation in order and returns the first hit.
func (s *Store) get(d digest.Digest) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lastErr error = backend.ErrNotFound
	for _, gen := range s.generations {
		r, err := gen.Get(d)
		if err == nil {
			return r, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Flush flushes every generation.
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gen := range s.generations {
		if err := gen.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the summed approximate size across all generations.
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, gen := range s.generations {
		total += gen.Size()
	}
	return total
}

// GetByDigest opens a raw reader over the bytes stored under d, probing
// every generation, the same probe Restore reads through. Used directly by
// callers that need raw node bytes rather than a decoded value (e.g.
// hamt's Prove).
func (s *Store) GetByDigest(d digest.Digest) (io.ReadCloser, error) {
	return s.get(d)
}
