// Package iter implements leaf iteration over a compound tree: a
// depth-first, leftmost-first walk yielding leaves in child-index order.
package iter

import (
	"github.com/iotaledger/kelvin/branch"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
)

type frame[L any, N any, A any] struct {
	node N
	next int
}

// Leaves walks the tree rooted at h depth-first, leftmost-first, yielding
// one leaf per Next call in child-index order.
type Leaves[L any, N any, A any] struct {
	store      *store.Store
	ops        handle.Ops[L, N, A]
	asCompound branch.AsCompound[L, N, A]
	stack      []frame[L, N, A]
	done       bool
}

// New opens a leaf iterator rooted at h.
func New[L any, N any, A any](h *handle.Handle[L, N, A], s *store.Store, ops handle.Ops[L, N, A], asCompound branch.AsCompound[L, N, A]) (*Leaves[L, N, A], error) {
	it := &Leaves[L, N, A]{store: s, ops: ops, asCompound: asCompound}
	if h.IsEmpty() {
		it.done = true
		return it, nil
	}
	n, err := h.Node(s, ops)
	if err != nil {
		return nil, err
	}
	it.stack = []frame[L, N, A]{{node: n}}
	return it, nil
}

// Next returns the next leaf in order, or (_, false, nil) once exhausted.
func (it *Leaves[L, N, A]) Next() (L, bool, error) {
	var zero L
	for {
		if it.done || len(it.stack) == 0 {
			it.done = true
			return zero, false, nil
		}
		top := &it.stack[len(it.stack)-1]
		comp := it.asCompound(&top.node)
		if top.next >= comp.Arity() {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		child := comp.ChildAt(top.next)
		top.next++
		switch child.Kind() {
		case handle.KindEmpty:
			continue
		case handle.KindLeaf:
			return mustLeaf(child)
		default:
			n, err := child.Node(it.store, it.ops)
			if err != nil {
				return zero, false, err
			}
			it.stack = append(it.stack, frame[L, N, A]{node: n})
		}
	}
}

func mustLeaf[L any, N any, A any](h *handle.Handle[L, N, A]) (L, bool, error) {
	v, err := h.LeafValue()
	if err != nil {
		var zero L
		return zero, false, err
	}
	return v, true, nil
}

// Collect drains the iterator into a slice.
func Collect[L any, N any, A any](it *Leaves[L, N, A]) ([]L, error) {
	var out []L
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
