// Package handle implements the tagged child-slot reference every
// compound node is built from: exactly one of empty, inline leaf, owned
// node, shared node, or persisted digest.
//
// Go generics cannot express "N knows how to restore/clone/annotate
// itself" through a constraint alone, so the operations that need to
// cross into N's own logic (decoding bytes, cloning on promotion,
// deriving an annotation) are supplied explicitly via an Ops value
// rather than discovered through a method set. Callers (compound,
// branch) hold one Ops per concrete collection and thread it through.
package handle

import (
	"io"

	"github.com/iotaledger/kelvin/common"
	"github.com/iotaledger/kelvin/digest"
	"github.com/iotaledger/kelvin/store"
	"golang.org/x/xerrors"
)

// Kind is a Handle's discriminant, readable without touching the store.
type Kind int

const (
	KindEmpty Kind = iota
	KindLeaf
	KindOwned
	KindShared
	KindPersisted
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindLeaf:
		return "leaf"
	case KindOwned:
		return "owned"
	case KindShared:
		return "shared"
	case KindPersisted:
		return "persisted"
	default:
		return "invalid"
	}
}

// Ops supplies the leaf/node-specific logic a Handle needs but cannot
// discover generically: decoding a node's bytes, cloning a node on
// copy-on-write promotion, injecting a leaf's annotation, and deriving a
// node's annotation (typically by combining its children's).
type Ops[L any, N any, A any] struct {
	DecodeNode func(r io.Reader) (N, error)
	CloneNode  func(N) N
	Inject     func(L) A
	Annotate   func(N) A
}

// Handle is a child slot: exactly one of empty, an inline leaf, an owned
// node, a shared (copy-on-write) node, or a persisted digest. A cached
// digest and/or cached annotation may additionally be attached.
type Handle[L any, N any, A any] struct {
	kind       Kind
	leaf       L
	owned      *N
	shared     *N
	snapshot   store.Snapshot[N]
	cachedAnno *A
	cachedDig  *digest.Digest
}

// Empty returns the empty handle.
func Empty[L any, N any, A any]() Handle[L, N, A] {
	return Handle[L, N, A]{kind: KindEmpty}
}

// Leaf wraps an inline leaf value.
func Leaf[L any, N any, A any](l L) Handle[L, N, A] {
	return Handle[L, N, A]{kind: KindLeaf, leaf: l}
}

// Owned wraps a freshly-constructed, exclusively-owned node.
func Owned[L any, N any, A any](n N) Handle[L, N, A] {
	return Handle[L, N, A]{kind: KindOwned, owned: &n}
}

// Persisted wraps a Snapshot referencing a node already written to a store.
func Persisted[L any, N any, A any](snap store.Snapshot[N]) Handle[L, N, A] {
	return Handle[L, N, A]{kind: KindPersisted, snapshot: snap}
}

// Kind returns the discriminant without resolving a persisted node.
func (h *Handle[L, N, A]) Kind() Kind { return h.kind }

// IsEmpty reports whether the slot is unoccupied.
func (h *Handle[L, N, A]) IsEmpty() bool { return h.kind == KindEmpty }

// Replace swaps in a new handle, returning the prior leaf value and
// whether the replaced slot had been a leaf.
func (h *Handle[L, N, A]) Replace(next Handle[L, N, A]) (old L, wasLeaf bool) {
	if h.kind == KindLeaf {
		old, wasLeaf = h.leaf, true
	}
	*h = next
	return
}

// MakeShared demotes an owned node to a shared one, marking it immutable
// through this handle until a future promotion clones it back to owned.
// A no-op on any other kind.
func (h *Handle[L, N, A]) MakeShared() {
	if h.kind != KindOwned {
		return
	}
	h.shared = h.owned
	h.owned = nil
	h.kind = KindShared
	h.cachedDig = nil
}

// Node resolves the handle to a concrete node value: a copy of an owned or
// shared node, or a node restored from the store for a Persisted handle.
// The handle itself is left unchanged (no promotion). Must not be called
// on a Leaf or Empty handle.
func (h *Handle[L, N, A]) Node(s *store.Store, ops Ops[L, N, A]) (N, error) {
	switch h.kind {
	case KindOwned:
		return *h.owned, nil
	case KindShared:
		return *h.shared, nil
	case KindPersisted:
		n, err := store.Restore(h.snapshot, ops.DecodeNode)
		if err != nil {
			var zero N
			return zero, xerrors.Errorf("handle: restoring node: %w", err)
		}
		return n, nil
	default:
		common.Assert(false, "handle: Node called on %s handle", h.kind)
		var zero N
		return zero, nil
	}
}

// NodeMut resolves the handle to a mutable, exclusively-owned node,
// promoting a Shared or Persisted handle in place first. The caller is
// responsible for invalidating cached digest/annotation by calling
// Invalidate once done mutating (the compound package's mutable-slot
// wrapper does this automatically via defer).
func (h *Handle[L, N, A]) NodeMut(s *store.Store, ops Ops[L, N, A]) (*N, error) {
	switch h.kind {
	case KindOwned:
		return h.owned, nil
	case KindShared:
		cloned := ops.CloneNode(*h.shared)
		h.owned = &cloned
		h.shared = nil
		h.kind = KindOwned
		h.cachedDig = nil
		return h.owned, nil
	case KindPersisted:
		n, err := store.Restore(h.snapshot, ops.DecodeNode)
		if err != nil {
			return nil, xerrors.Errorf("handle: restoring node for mutation: %w", err)
		}
		h.owned = &n
		h.kind = KindOwned
		h.cachedDig = nil
		h.cachedAnno = nil
		return h.owned, nil
	default:
		common.Assert(false, "handle: NodeMut called on %s handle", h.kind)
		return nil, nil
	}
}

// LeafValue returns the inline leaf. Must not be called on a non-Leaf
// handle.
func (h *Handle[L, N, A]) LeafValue() (L, error) {
	if h.kind != KindLeaf {
		var zero L
		return zero, xerrors.Errorf("handle: LeafValue called on %s handle", h.kind)
	}
	return h.leaf, nil
}

// LeafValueMut returns a pointer to the inline leaf for in-place mutation,
// invalidating any cached annotation/digest.
func (h *Handle[L, N, A]) LeafValueMut() (*L, error) {
	if h.kind != KindLeaf {
		return nil, xerrors.Errorf("handle: LeafValueMut called on %s handle", h.kind)
	}
	h.cachedAnno = nil
	h.cachedDig = nil
	return &h.leaf, nil
}

// Snapshot returns the handle's store.Snapshot and true if it is
// Persisted. The collections' Persist methods read the root snapshot
// through it after the persist walk, and hamt's Prove uses it to find the
// root digest.
func (h *Handle[L, N, A]) Snapshot() (store.Snapshot[N], bool) {
	if h.kind != KindPersisted {
		return store.Snapshot[N]{}, false
	}
	return h.snapshot, true
}

// Invalidate drops any cached digest and annotation, forcing the next
// Annotation/digest call to recompute. Called by the mutable-slot wrapper
// when a mutation may have occurred.
func (h *Handle[L, N, A]) Invalidate() {
	h.cachedDig = nil
	h.cachedAnno = nil
}

// Annotation returns the handle's annotation, computing and caching it on
// first access. Empty handles have no annotation.
func (h *Handle[L, N, A]) Annotation(s *store.Store, ops Ops[L, N, A]) (*A, error) {
	if h.kind == KindEmpty {
		return nil, nil
	}
	if h.cachedAnno != nil {
		return h.cachedAnno, nil
	}
	var a A
	switch h.kind {
	case KindLeaf:
		a = ops.Inject(h.leaf)
	case KindOwned:
		a = ops.Annotate(*h.owned)
	case KindShared:
		a = ops.Annotate(*h.shared)
	case KindPersisted:
		n, err := store.Restore(h.snapshot, ops.DecodeNode)
		if err != nil {
			return nil, xerrors.Errorf("handle: restoring node for annotation: %w", err)
		}
		a = ops.Annotate(n)
	}
	h.cachedAnno = &a
	return h.cachedAnno, nil
}

// Digest returns the handle's content digest; only meaningful once the
// handle is Persisted (or has previously been persisted and cached). It
// is the caller's job (the store's persist walk) to promote other kinds
// to Persisted before relying on this.
func (h *Handle[L, N, A]) Digest() (digest.Digest, bool) {
	if h.cachedDig != nil {
		return *h.cachedDig, true
	}
	if h.kind == KindPersisted {
		return h.snapshot.Digest, true
	}
	return digest.Digest{}, false
}

// SetPersisted replaces the handle in place with a Persisted snapshot,
// caching its digest. Called by compound.PersistHandle once it has
// written the handle's current contents through a Sink.
func (h *Handle[L, N, A]) SetPersisted(snap store.Snapshot[N]) {
	d := snap.Digest
	*h = Handle[L, N, A]{kind: KindPersisted, snapshot: snap, cachedDig: &d, cachedAnno: h.cachedAnno}
}
