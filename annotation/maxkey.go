package annotation

import (
	"io"

	"github.com/iotaledger/kelvin/codec"
)

// Ordered is any key type with a natural total order, expressed as a
// three-way comparison (negative/zero/positive), since Go generics have no
// built-in Ord constraint for arbitrary comparable-by-less types.
type Ordered[K any] interface {
	Compare(other K) int
}

// MaxKey tracks the maximum key in a sub-tree. Combine keeps the greater
// of the two. Keyed search methods (ordered maps) read this projection to
// decide which child to descend into.
type MaxKey[K Ordered[K]] struct {
	Key K
}

func (m MaxKey[K]) Combine(b MaxKey[K]) MaxKey[K] {
	if b.Key.Compare(m.Key) > 0 {
		return b
	}
	return m
}

func (m MaxKey[K]) Persist(w io.Writer, persistKey func(io.Writer, K) error) error {
	return persistKey(w, m.Key)
}

func RestoreMaxKey[K Ordered[K]](r io.Reader, restoreKey codec.Decoder[K]) (MaxKey[K], error) {
	k, err := restoreKey(r)
	if err != nil {
		return MaxKey[K]{}, err
	}
	return MaxKey[K]{Key: k}, nil
}

// MinKey tracks the minimum key in a sub-tree. Combine keeps the lesser.
type MinKey[K Ordered[K]] struct {
	Key K
}

func (m MinKey[K]) Combine(b MinKey[K]) MinKey[K] {
	if b.Key.Compare(m.Key) < 0 {
		return b
	}
	return m
}

func (m MinKey[K]) Persist(w io.Writer, persistKey func(io.Writer, K) error) error {
	return persistKey(w, m.Key)
}

func RestoreMinKey[K Ordered[K]](r io.Reader, restoreKey codec.Decoder[K]) (MinKey[K], error) {
	k, err := restoreKey(r)
	if err != nil {
		return MinKey[K]{}, err
	}
	return MinKey[K]{Key: k}, nil
}
