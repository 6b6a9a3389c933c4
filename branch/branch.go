// Package branch implements the root-to-leaf cursor: Branch for
// read-only descent, BranchMut for a descent whose levels promote to
// owned nodes and, on Close, invalidate cached digests/annotations so
// the next read recomputes them.
package branch

import (
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/search"
	"github.com/iotaledger/kelvin/store"
	"golang.org/x/xerrors"
)

// AsCompound exposes a resolved node's children, mirroring the function a
// concrete collection supplies compound.PersistHandle too. It takes a
// pointer so that a Compound view obtained through it can mutate the
// node's own child slots in place rather than a throwaway copy: Go
// copies N by value on every call, so only a pointer parameter lets the
// returned Compound's ChildAt write back to the caller's actual node.
type AsCompound[L any, N any, A any] func(*N) compound.Compound[L, N, A]

type level[L any, N any, A any] struct {
	node       N
	childIndex int
}

// Branch is a read-only root-to-leaf cursor. It does not mutate handles;
// resolving a Persisted or SharedNode child just restores/derefs it
// in-place without promotion.
type Branch[L any, N any, A any] struct {
	store      *store.Store
	ops        handle.Ops[L, N, A]
	asCompound AsCompound[L, N, A]
	levels     []level[L, N, A]
}

// New opens a Branch rooted at h. h is not mutated.
func New[L any, N any, A any](h *handle.Handle[L, N, A], s *store.Store, ops handle.Ops[L, N, A], asCompound AsCompound[L, N, A]) (*Branch[L, N, A], error) {
	n, err := h.Node(s, ops)
	if err != nil {
		return nil, err
	}
	return &Branch[L, N, A]{store: s, ops: ops, asCompound: asCompound, levels: []level[L, N, A]{{node: n}}}, nil
}

// Depth returns the number of levels currently on the cursor.
func (b *Branch[L, N, A]) Depth() int { return len(b.levels) }

// Node returns the node at the current (deepest) level.
func (b *Branch[L, N, A]) Node() N { return b.levels[len(b.levels)-1].node }

// ChildAt returns the handle at index i of the current level, read-only.
func (b *Branch[L, N, A]) ChildAt(i int) *handle.Handle[L, N, A] {
	comp := b.asCompound(&b.levels[len(b.levels)-1].node)
	return comp.ChildAt(i)
}

// Descend moves the cursor into the child at index i of the current
// level, resolving it (restoring from the store if Persisted).
func (b *Branch[L, N, A]) Descend(i int) error {
	child := b.ChildAt(i)
	if child.Kind() == handle.KindLeaf || child.Kind() == handle.KindEmpty {
		return xerrors.Errorf("branch: cannot descend into a %s handle", child.Kind())
	}
	n, err := child.Node(b.store, b.ops)
	if err != nil {
		return err
	}
	b.levels[len(b.levels)-1].childIndex = i
	b.levels = append(b.levels, level[L, N, A]{node: n})
	return nil
}

// LeafAt returns the leaf value at index i of the current level. The
// index must refer to a Leaf handle.
func (b *Branch[L, N, A]) LeafAt(i int) (L, error) {
	return b.ChildAt(i).LeafValue()
}

// Children returns every child handle of the current level, in index
// order, for search methods (package search) that need to examine more
// than one slot to pick a descent target.
func (b *Branch[L, N, A]) Children() []*handle.Handle[L, N, A] {
	comp := b.asCompound(&b.levels[len(b.levels)-1].node)
	n := comp.Arity()
	out := make([]*handle.Handle[L, N, A], n)
	for i := 0; i < n; i++ {
		out[i] = comp.ChildAt(i)
	}
	return out
}

// SeekLeaf positions the cursor at the first leaf at or after the current
// level's offset, running First-selection at each level: descending into
// nodes, and backtracking to the parent's next slot when a level is
// exhausted. Returns ok=false once the whole tree behind the cursor has
// been consumed.
func (b *Branch[L, N, A]) SeekLeaf() (L, bool, error) {
	var zero L
	for {
		lvl := &b.levels[len(b.levels)-1]
		children := b.Children()
		res := search.SelectFirst(children[lvl.childIndex:])
		switch res.Kind {
		case search.KindNone:
			if len(b.levels) == 1 {
				return zero, false, nil
			}
			b.levels = b.levels[:len(b.levels)-1]
			b.levels[len(b.levels)-1].childIndex++
		case search.KindLeaf:
			lvl.childIndex += res.Index
			v, err := children[lvl.childIndex].LeafValue()
			if err != nil {
				return zero, false, err
			}
			return v, true, nil
		case search.KindPath:
			lvl.childIndex += res.Index
			if err := b.Descend(lvl.childIndex); err != nil {
				return zero, false, err
			}
		}
	}
}

// Advance moves the cursor past the current leaf, so the next SeekLeaf
// yields the one after it.
func (b *Branch[L, N, A]) Advance() {
	b.levels[len(b.levels)-1].childIndex++
}
