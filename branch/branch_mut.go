package branch

import (
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
)

type mutLevel[L any, N any, A any] struct {
	slot       *compound.Slot[L, N, A]
	node       *N
	childIndex int
}

// BranchMut is a mutating root-to-leaf cursor. Each level promotes its
// handle to an exclusively-owned node (cloning a SharedNode, restoring a
// Persisted one) before exposing it for mutation. Close unwinds the
// cursor, invalidating every level's cached digest/annotation, which is
// the engine's only mechanism for keeping annotations consistent under
// mutation. Callers must defer Close immediately after NewMut.
type BranchMut[L any, N any, A any] struct {
	store      *store.Store
	ops        handle.Ops[L, N, A]
	asCompound AsCompound[L, N, A]
	levels     []mutLevel[L, N, A]
	closed     bool
}

// NewMut opens a BranchMut rooted at h, promoting h itself to owned.
func NewMut[L any, N any, A any](h *handle.Handle[L, N, A], s *store.Store, ops handle.Ops[L, N, A], asCompound AsCompound[L, N, A]) (*BranchMut[L, N, A], error) {
	b := &BranchMut[L, N, A]{store: s, ops: ops, asCompound: asCompound}
	if err := b.push(h); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BranchMut[L, N, A]) push(h *handle.Handle[L, N, A]) error {
	slot := compound.NewSlot(h)
	node, err := h.NodeMut(b.store, b.ops)
	if err != nil {
		return err
	}
	b.levels = append(b.levels, mutLevel[L, N, A]{slot: slot, node: node})
	return nil
}

// Depth returns the number of levels currently on the cursor.
func (b *BranchMut[L, N, A]) Depth() int { return len(b.levels) }

// Node returns the current (deepest) level's node, for direct field
// mutation through its own methods.
func (b *BranchMut[L, N, A]) Node() *N { return b.levels[len(b.levels)-1].node }

// ChildHandle returns the handle at index i of the current level, for
// mutation (e.g. Replace with a new leaf, or further Descend).
func (b *BranchMut[L, N, A]) ChildHandle(i int) *handle.Handle[L, N, A] {
	comp := b.asCompound(b.Node())
	return comp.ChildAt(i)
}

// Children returns every child handle of the current level, in index
// order, for search methods that need to examine more than one slot to
// pick a descent target.
func (b *BranchMut[L, N, A]) Children() []*handle.Handle[L, N, A] {
	comp := b.asCompound(b.Node())
	n := comp.Arity()
	out := make([]*handle.Handle[L, N, A], n)
	for i := 0; i < n; i++ {
		out[i] = comp.ChildAt(i)
	}
	return out
}

// Descend promotes the child handle at index i of the current level and
// pushes it as the new deepest level.
func (b *BranchMut[L, N, A]) Descend(i int) error {
	b.levels[len(b.levels)-1].childIndex = i
	return b.push(b.ChildHandle(i))
}

// Close unwinds every level, releasing its Slot (invalidating cached
// digest/annotation so the next Annotation()/Digest() call recomputes
// from the now-possibly-mutated children). Idempotent; safe to defer.
func (b *BranchMut[L, N, A]) Close() {
	if b.closed {
		return
	}
	for i := len(b.levels) - 1; i >= 0; i-- {
		b.levels[i].slot.Release()
	}
	b.closed = true
}
