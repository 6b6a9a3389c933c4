// Package list implements a persistent singly linked list with stack
// semantics: push and pop at the head, with every cell a content-addressed
// node sharing its tail with prior versions. A cell is a two-slot
// compound node (head leaf, tail node), so the engine's iterators,
// annotations, and persist walk apply unchanged.
package list

import (
	"io"

	"github.com/iotaledger/kelvin/annotation"
	"github.com/iotaledger/kelvin/branch"
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/iter"
	"github.com/iotaledger/kelvin/store"
)

// Anno is the annotation every list cell carries: the number of elements
// from this cell to the end, used by Count and Nth.
type Anno = annotation.Cardinality[uint64]

const (
	slotHead = 0
	slotTail = 1
)

// Node is one list cell: the head element as an inline leaf and the rest
// of the list behind a node handle. An empty list is a node with both
// slots empty.
type Node[T any] struct {
	children [2]handle.Handle[T, Node[T], Anno]
}

// Arity implements compound.Compound.
func (n *Node[T]) Arity() int { return 2 }

// ChildAt implements compound.Compound.
func (n *Node[T]) ChildAt(i int) *handle.Handle[T, Node[T], Anno] {
	return &n.children[i]
}

// Codecs bundles the element-specific wire functions.
type Codecs[T any] struct {
	EncodeValue func(io.Writer, T) error
	DecodeValue func(io.Reader) (T, error)
}

// nodeCodec adapts a Node's wire layout to codec.Codec: the head slot
// then the tail slot, each in standard handle form.
type nodeCodec[T any] struct {
	node   Node[T]
	codecs Codecs[T]
}

func (nc nodeCodec[T]) Persist(w io.Writer) error {
	for i := range nc.node.children {
		if err := handle.WriteSlot(w, &nc.node.children[i], nc.codecs.EncodeValue); err != nil {
			return err
		}
	}
	return nil
}

func decodeNode[T any](r io.Reader, codecs Codecs[T]) (Node[T], error) {
	var node Node[T]
	for i := range node.children {
		h, err := handle.ReadSlot[T, Node[T], Anno](r, codecs.DecodeValue)
		if err != nil {
			return node, err
		}
		node.children[i] = h
	}
	return node, nil
}

// List is a persistent stack. The zero value is not usable; construct
// with New.
type List[T any] struct {
	store      *store.Store
	codecs     Codecs[T]
	ops        handle.Ops[T, Node[T], Anno]
	asCompound branch.AsCompound[T, Node[T], Anno]
	root       handle.Handle[T, Node[T], Anno]
}

// New creates an empty List backed by s.
func New[T any](s *store.Store, codecs Codecs[T]) *List[T] {
	l := &List[T]{store: s, codecs: codecs}
	l.asCompound = func(n *Node[T]) compound.Compound[T, Node[T], Anno] { return n }
	l.ops = l.buildOps()
	l.root = handle.Owned[T, Node[T], Anno](Node[T]{})
	return l
}

func (l *List[T]) buildOps() handle.Ops[T, Node[T], Anno] {
	var ops handle.Ops[T, Node[T], Anno]
	ops = handle.Ops[T, Node[T], Anno]{
		DecodeNode: func(r io.Reader) (Node[T], error) {
			return decodeNode(r, l.codecs)
		},
		CloneNode: func(n Node[T]) Node[T] { return n },
		Inject:    func(T) Anno { return Anno{Count: 1} },
		Annotate: func(n Node[T]) Anno {
			var total uint64
			for i := range n.children {
				a, err := n.children[i].Annotation(l.store, ops)
				if err == nil && a != nil {
					total += a.Count
				}
			}
			return Anno{Count: total}
		},
	}
	return ops
}

// Count returns the number of elements.
func (l *List[T]) Count() (uint64, error) {
	a, err := l.root.Annotation(l.store, l.ops)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.Count, nil
}

// Push prepends value, making it the new head. The prior list becomes
// the new cell's tail, shared rather than copied.
func (l *List[T]) Push(value T) error {
	prior, err := l.root.Node(l.store, l.ops)
	if err != nil {
		return err
	}
	var cell Node[T]
	cell.children[slotHead] = handle.Leaf[T, Node[T], Anno](value)
	if !prior.children[slotHead].IsEmpty() {
		cell.children[slotTail] = l.root
	}
	l.root = handle.Owned[T, Node[T], Anno](cell)
	return nil
}

// Pop removes and returns the head element, ok=false on an empty list.
func (l *List[T]) Pop() (T, bool, error) {
	var zero T
	slot := compound.NewSlot(&l.root)
	defer slot.Release()
	node, err := l.root.NodeMut(l.store, l.ops)
	if err != nil {
		return zero, false, err
	}
	head := &node.children[slotHead]
	if head.Kind() != handle.KindLeaf {
		return zero, false, nil
	}
	value, _ := head.Replace(handle.Empty[T, Node[T], Anno]())
	tail := node.children[slotTail]
	if tail.IsEmpty() {
		l.root = handle.Owned[T, Node[T], Anno](Node[T]{})
		return value, true, nil
	}
	rest, err := tail.Node(l.store, l.ops)
	if err != nil {
		return zero, false, err
	}
	l.root = handle.Owned[T, Node[T], Anno](rest)
	return value, true, nil
}

// First returns the head element without removing it.
func (l *List[T]) First() (T, bool, error) {
	var zero T
	node, err := l.root.Node(l.store, l.ops)
	if err != nil {
		return zero, false, err
	}
	head := node.children[slotHead]
	if head.Kind() != handle.KindLeaf {
		return zero, false, nil
	}
	v, err := head.LeafValue()
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Nth returns the i'th element counted from the head, walking one cell
// at a time; the tail's Cardinality annotation is checked at each step so
// an index past the end returns early. Returns ok=false past the end.
func (l *List[T]) Nth(i uint64) (T, bool, error) {
	var zero T
	br, err := branch.New(&l.root, l.store, l.ops, l.asCompound)
	if err != nil {
		return zero, false, err
	}
	for {
		children := br.Children()
		head := children[slotHead]
		if head.Kind() != handle.KindLeaf {
			return zero, false, nil
		}
		if i == 0 {
			v, err := head.LeafValue()
			if err != nil {
				return zero, false, err
			}
			return v, true, nil
		}
		tail := children[slotTail]
		if tail.IsEmpty() {
			return zero, false, nil
		}
		a, err := tail.Annotation(l.store, l.ops)
		if err != nil {
			return zero, false, err
		}
		if a == nil || i > a.Count {
			return zero, false, nil
		}
		if err := br.Descend(slotTail); err != nil {
			return zero, false, err
		}
		i--
	}
}

// Iter returns an iterator from head to tail (most recently pushed
// first).
func (l *List[T]) Iter() (*iter.Leaves[T, Node[T], Anno], error) {
	return iter.New(&l.root, l.store, l.ops, l.asCompound)
}

// Persist walks the list bottom-up, promoting every handle to Persisted
// and returning a store.Snapshot for the whole list.
func (l *List[T]) Persist() (store.Snapshot[Node[T]], error) {
	asCodec := func(n Node[T]) codec.Codec { return nodeCodec[T]{node: n, codecs: l.codecs} }
	if err := compound.PersistHandle[T, Node[T], Anno](
		&l.root, l.store, l.ops, l.asCompound, asCodec,
	); err != nil {
		return store.Snapshot[Node[T]]{}, err
	}
	snap, _ := l.root.Snapshot()
	return snap, nil
}
