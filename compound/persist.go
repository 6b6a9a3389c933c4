package compound

import (
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
)

// PersistHandle drives the bottom-up persist walk: depth-first, persist
// every child handle first, then persist the
// node itself into a fresh sub-sink, then replace the handle in place with
// Persisted(digest). Empty, Leaf, and already-Persisted handles are
// left untouched; only Owned/Shared node handles are promoted, since leaf
// values are encoded inline in their parent node's own bytes.
//
// asCompound exposes the resolved node's children (taking a pointer so
// in-place child promotions are visible to the node value encoded below,
// see branch.AsCompound); asCodec exposes its own wire encoding (direct
// fields plus, implicitly, its children's digests once they too are
// Persisted).
func PersistHandle[L any, N any, A any](
	h *handle.Handle[L, N, A],
	s *store.Store,
	ops handle.Ops[L, N, A],
	asCompound func(*N) Compound[L, N, A],
	asCodec func(N) codec.Codec,
) error {
	switch h.Kind() {
	case handle.KindEmpty, handle.KindLeaf, handle.KindPersisted:
		return nil
	}

	node, err := h.Node(s, ops)
	if err != nil {
		return err
	}
	children := asCompound(&node)
	for i := 0; i < children.Arity(); i++ {
		if err := PersistHandle(children.ChildAt(i), s, ops, asCompound, asCodec); err != nil {
			return err
		}
	}

	sink := store.NewSink(s)
	if err := asCodec(node).Persist(sink); err != nil {
		return err
	}
	d, err := sink.Fin()
	if err != nil {
		return err
	}
	h.SetPersisted(store.NewSnapshot[N](s, d))
	return nil
}
