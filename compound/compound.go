// Package compound defines the contract every concrete collection's node
// type implements, plus the mutable-slot wrapper and persist walk the
// engine drives mutations and persistence through.
package compound

import "github.com/iotaledger/kelvin/handle"

// Compound is the contract a collection's node type implements: enumerate
// its children by index. L is the leaf type, N the node type (the
// implementer itself, so N's methods close over *handle.Handle[L, N, A]
// slices), A the annotation type.
type Compound[L any, N any, A any] interface {
	// Arity returns the number of child slots this node has.
	Arity() int
	// ChildAt returns a pointer to the i'th child handle, for in-place
	// mutation. Panics if i is out of range.
	ChildAt(i int) *handle.Handle[L, N, A]
}
