package store

import (
	"bytes"

	"github.com/iotaledger/kelvin/digest"
)

// Sink buffers bytes in memory until Fin, at which point the accumulated
// bytes are hashed and written through to the Store's write generation.
// compound.PersistHandle persists a node's children depth-first, each into
// its own fresh Sink (NewSink), then writes the node, with its children's
// digests, into a Sink of its own before calling Fin.
type Sink struct {
	buf   bytes.Buffer
	store *Store
}

// NewSink creates a Sink bound to store.
func NewSink(store *Store) *Sink {
	return &Sink{store: store}
}

// Recur creates a fresh Sink bound to the same Store, for persisting a
// child value independently of the parent's own byte stream.
func (s *Sink) Recur() *Sink {
	return NewSink(s.store)
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// Fin hashes the accumulated bytes, writes them through to the backing
// Store, and returns the resulting digest.
func (s *Sink) Fin() (digest.Digest, error) {
	d := digest.Of(s.buf.Bytes())
	if _, err := s.store.put(d, s.buf.Bytes()); err != nil {
		return digest.Digest{}, err
	}
	return d, nil
}
