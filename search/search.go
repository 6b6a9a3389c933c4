// Package search implements the selection strategies that drive descent
// through a compound tree.
//
// The four strategies read genuinely different per-child metadata (none,
// a hash slot, a MaxKey projection, a nibble prefix), so forcing them
// through one generic interface would mean inventing a union metadata
// type no strategy actually wants. Each strategy is instead its own
// generic function; callers (branch, and the concrete collections) pick
// the one that matches their node shape.
package search

import "github.com/iotaledger/kelvin/handle"

// Kind discriminates a Result.
type Kind int

const (
	KindNone Kind = iota
	KindLeaf
	KindPath
)

// Result is what a SearchMethod returns at one level of descent.
type Result struct {
	Kind  Kind
	Index int
}

func Leaf(i int) Result { return Result{Kind: KindLeaf, Index: i} }
func Path(i int) Result { return Result{Kind: KindPath, Index: i} }
func None() Result      { return Result{Kind: KindNone} }

// kindOf classifies a handle for strategies that only need to know
// leaf-vs-node-vs-empty, not resolve it.
func kindOf[L any, N any, A any](h *handle.Handle[L, N, A]) Kind {
	switch h.Kind() {
	case handle.KindEmpty:
		return KindNone
	case handle.KindLeaf:
		return KindLeaf
	default:
		return KindPath
	}
}

// SelectFirst descends into the first non-empty child, stopping at the
// first leaf. Used by iteration (leftmost-first traversal) and by
// collections with no ordering to speak of.
func SelectFirst[L any, N any, A any](handles []*handle.Handle[L, N, A]) Result {
	for i, h := range handles {
		switch kindOf(h) {
		case KindLeaf:
			return Leaf(i)
		case KindPath:
			return Path(i)
		}
	}
	return None()
}
