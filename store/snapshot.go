package store

import (
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/digest"
)

// Snapshot is a durable handle to content of type T previously persisted
// into a Store: just a digest plus the Store it was persisted through.
// Cheap to copy, safe to store on disk itself (e.g. as a Root pointer).
type Snapshot[T any] struct {
	Digest digest.Digest
	store  *Store
}

// NewSnapshot builds a Snapshot from a digest already known to be present
// in store, without running content through a fresh Sink. Used by the
// compound package's persist walk, which derives the digest itself while
// promoting a node handle to Persisted.
func NewSnapshot[T any](store *Store, d digest.Digest) Snapshot[T] {
	return Snapshot[T]{Digest: d, store: store}
}

// Persist writes content's wire encoding into store and returns a durable
// Snapshot referencing it.
func Persist[T codec.Codec](store *Store, content T) (Snapshot[T], error) {
	sink := NewSink(store)
	if err := content.Persist(sink); err != nil {
		return Snapshot[T]{}, err
	}
	d, err := sink.Fin()
	if err != nil {
		return Snapshot[T]{}, err
	}
	return Snapshot[T]{Digest: d, store: store}, nil
}

// Restore decodes the content a Snapshot refers to, probing every
// generation of its Store for the bytes.
func Restore[T any](snap Snapshot[T], decode codec.Decoder[T]) (T, error) {
	r, err := snap.store.get(snap.Digest)
	if err != nil {
		var zero T
		return zero, err
	}
	defer r.Close()
	return decode(NewSource(r, snap.store))
}
