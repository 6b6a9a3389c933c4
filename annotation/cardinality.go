package annotation

import (
	"io"

	"github.com/iotaledger/kelvin/codec"
)

// Counter is any integer type usable as a Cardinality counter.
type Counter interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// Cardinality[T] tracks the total number of leaves under a sub-tree.
// Injection yields one per leaf; combine is addition. This is the
// projection rank-indexed search methods (e.g. list's Nth) read.
type Cardinality[T Counter] struct {
	Count T
}

// Combine implements Associative.
func (c Cardinality[T]) Combine(b Cardinality[T]) Cardinality[T] {
	return Cardinality[T]{Count: c.Count + b.Count}
}

// InjectCardinality is the leaf-injection function: any leaf counts as one.
func InjectCardinality[L any, T Counter](L) Cardinality[T] {
	return Cardinality[T]{Count: 1}
}

// Persist implements codec.Codec.
func (c Cardinality[T]) Persist(w io.Writer) error {
	return codec.WriteVarint(w, uint64(c.Count))
}

// RestoreCardinality implements codec.Decoder[Cardinality[T]].
func RestoreCardinality[T Counter](r io.Reader) (Cardinality[T], error) {
	n, err := codec.ReadVarint(r)
	if err != nil {
		return Cardinality[T]{}, err
	}
	return Cardinality[T]{Count: T(n)}, nil
}
