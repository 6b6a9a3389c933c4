// Package radix implements a nibble-keyed prefix tree on top of the tree
// engine: keys are byte strings consumed four bits at a time, with a
// compressed nibble run on every edge. Keys live in the tree's structure
// rather than its leaves, so the leaf type is the bare value.
package radix

import (
	"io"

	"github.com/iotaledger/kelvin/annotation"
	"github.com/iotaledger/kelvin/handle"
)

// buckets is the node width: slot 0 holds the leaf for a key exhausted at
// this node, slots 1..16 one child per first nibble of the remaining key.
const buckets = 17

// Anno is the annotation every radix node carries: the number of leaves
// in its sub-tree, used by Count.
type Anno = annotation.Cardinality[uint64]

// Node is one level of the trie. prefixes[i] is the compressed nibble run
// on the edge to children[i+1], after the nibble i that selects it.
type Node[V any] struct {
	children [buckets]handle.Handle[V, Node[V], Anno]
	prefixes [buckets - 1]NibbleBuf
}

// Arity implements compound.Compound.
func (n *Node[V]) Arity() int { return buckets }

// ChildAt implements compound.Compound.
func (n *Node[V]) ChildAt(i int) *handle.Handle[V, Node[V], Anno] {
	return &n.children[i]
}

// Codecs bundles the value-specific wire functions the engine needs but
// can't discover generically. Keys need none: they are encoded by the
// tree's own edges.
type Codecs[V any] struct {
	EncodeValue func(io.Writer, V) error
	DecodeValue func(io.Reader) (V, error)
}

// nodeCodec adapts a Node's wire layout to codec.Codec: all 17 child
// handles in slot order, then the 16 per-edge nibble prefixes (the
// terminal slot 0 has no edge).
type nodeCodec[V any] struct {
	node   Node[V]
	codecs Codecs[V]
}

func (nc nodeCodec[V]) Persist(w io.Writer) error {
	for i := range nc.node.children {
		if err := handle.WriteSlot(w, &nc.node.children[i], nc.codecs.EncodeValue); err != nil {
			return err
		}
	}
	for i := range nc.node.prefixes {
		if err := nc.node.prefixes[i].persist(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeNode[V any](r io.Reader, codecs Codecs[V]) (Node[V], error) {
	var node Node[V]
	for i := range node.children {
		h, err := handle.ReadSlot[V, Node[V], Anno](r, codecs.DecodeValue)
		if err != nil {
			return node, err
		}
		node.children[i] = h
	}
	for i := range node.prefixes {
		p, err := restoreNibbleBuf(r)
		if err != nil {
			return node, err
		}
		node.prefixes[i] = p
	}
	return node, nil
}
