package compound

import "github.com/iotaledger/kelvin/handle"

// Slot wraps mutable access to a single child handle. Any code that
// obtains a *handle.Handle for the purpose of mutating it (replacing it,
// or promoting and mutating the node/leaf inside) should do so through a
// Slot and call Release (typically via defer) when done, so the engine
// knows to treat the handle's cached digest/annotation as stale.
type Slot[L any, N any, A any] struct {
	h *handle.Handle[L, N, A]
}

// NewSlot wraps h for mutation.
func NewSlot[L any, N any, A any](h *handle.Handle[L, N, A]) *Slot[L, N, A] {
	return &Slot[L, N, A]{h: h}
}

// Handle returns the wrapped handle.
func (s *Slot[L, N, A]) Handle() *handle.Handle[L, N, A] {
	return s.h
}

// Replace swaps in a new handle, returning the prior leaf if any.
func (s *Slot[L, N, A]) Replace(next handle.Handle[L, N, A]) (old L, wasLeaf bool) {
	return s.h.Replace(next)
}

// Release invalidates the wrapped handle's cached digest and annotation.
// Call via defer immediately after obtaining a Slot that might mutate its
// target, so stale caches never survive a mutation.
func (s *Slot[L, N, A]) Release() {
	s.h.Invalidate()
}

// SlotAt is a convenience for NewSlot(c.ChildAt(i)).
func SlotAt[L any, N any, A any](c Compound[L, N, A], i int) *Slot[L, N, A] {
	return NewSlot(c.ChildAt(i))
}
