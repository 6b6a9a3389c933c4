// Package twothree implements an ordered key/value collection as a 2-3
// tree: every internal node has two or three children, and all leaves
// sit at the same depth.
package twothree

import (
	"io"

	"github.com/iotaledger/kelvin/annotation"
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/handle"
)

// minChildren/maxChildren are the 2-3 tree's branching bounds.
const (
	minChildren = 2
	maxChildren = 3
)

// KV is the leaf type: a key/value pair stored inline in a handle.
type KV[K any, V any] struct {
	Key   K
	Value V
}

// Anno pairs the maximum key under a sub-tree with its leaf count: Keyed
// search reads the MaxKey projection to pick a descent target, while Nth
// (and Count) read the Cardinality projection off the very same value.
type Anno[K annotation.Ordered[K]] annotation.Tuple2[annotation.MaxKey[K], annotation.Cardinality[uint64]]

// Node is one level of the tree: two or three child handles, in
// ascending key order.
type Node[K annotation.Ordered[K], V any] struct {
	children []handle.Handle[KV[K, V], Node[K, V], Anno[K]]
}

// Arity implements compound.Compound.
func (n *Node[K, V]) Arity() int { return len(n.children) }

// ChildAt implements compound.Compound.
func (n *Node[K, V]) ChildAt(i int) *handle.Handle[KV[K, V], Node[K, V], Anno[K]] {
	return &n.children[i]
}

// Codecs bundles the key/value-specific wire functions the engine needs
// but can't discover generically.
type Codecs[K annotation.Ordered[K], V any] struct {
	EncodeKey   func(io.Writer, K) error
	DecodeKey   func(io.Reader) (K, error)
	EncodeValue func(io.Writer, V) error
	DecodeValue func(io.Reader) (V, error)
}

func (c Codecs[K, V]) persistLeaf(w io.Writer, kv KV[K, V]) error {
	if err := c.EncodeKey(w, kv.Key); err != nil {
		return err
	}
	return c.EncodeValue(w, kv.Value)
}

func (c Codecs[K, V]) restoreLeaf(r io.Reader) (KV[K, V], error) {
	k, err := c.DecodeKey(r)
	if err != nil {
		return KV[K, V]{}, err
	}
	v, err := c.DecodeValue(r)
	if err != nil {
		return KV[K, V]{}, err
	}
	return KV[K, V]{Key: k, Value: v}, nil
}

// nodeCodec adapts a Node's wire layout to codec.Codec: a length byte
// (the child count: 2 or 3 below the root, anywhere from 0 to 3 at the
// root) followed by each child handle in order.
type nodeCodec[K annotation.Ordered[K], V any] struct {
	node   Node[K, V]
	codecs Codecs[K, V]
}

func (nc nodeCodec[K, V]) Persist(w io.Writer) error {
	if err := codec.WriteByte(w, byte(len(nc.node.children))); err != nil {
		return err
	}
	for i := range nc.node.children {
		if err := handle.WriteSlot(w, &nc.node.children[i], nc.codecs.persistLeaf); err != nil {
			return err
		}
	}
	return nil
}

func decodeNode[K annotation.Ordered[K], V any](r io.Reader, codecs Codecs[K, V]) (Node[K, V], error) {
	var node Node[K, V]
	n, err := codec.ReadByte(r)
	if err != nil {
		return node, err
	}
	node.children = make([]handle.Handle[KV[K, V], Node[K, V], Anno[K]], n)
	for i := range node.children {
		h, err := handle.ReadSlot[KV[K, V], Node[K, V], Anno[K]](r, codecs.restoreLeaf)
		if err != nil {
			return node, err
		}
		node.children[i] = h
	}
	return node, nil
}
