package handle

import (
	"io"

	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/digest"
	"github.com/iotaledger/kelvin/store"
	"golang.org/x/xerrors"
)

// WriteSlot writes one handle's wire form: a tag byte
// (0 empty, 1 leaf inline, 2 persisted digest) followed by the variant's
// payload. Only valid on Empty, Leaf, or Persisted handles; an Owned or
// Shared handle must be promoted to Persisted first (compound.PersistHandle
// does this for every handle reachable from a node before the node itself
// is encoded).
func WriteSlot[L any, N any, A any](w io.Writer, h *Handle[L, N, A], persistLeaf func(io.Writer, L) error) error {
	switch h.kind {
	case KindEmpty:
		return codec.WriteByte(w, 0)
	case KindLeaf:
		if err := codec.WriteByte(w, 1); err != nil {
			return err
		}
		return persistLeaf(w, h.leaf)
	case KindPersisted:
		if err := codec.WriteByte(w, 2); err != nil {
			return err
		}
		_, err := w.Write(h.snapshot.Digest.Bytes())
		return err
	default:
		return xerrors.Errorf("handle: cannot write a %s handle (promote to Persisted first)", h.kind)
	}
}

// ReadSlot reads a handle previously written by WriteSlot, matching
// codec.Decoder's func(io.Reader) (T, error) shape so it composes directly
// as part of a node's own Decoder. If r is a *store.Source, a decoded
// Persisted handle is tied back to that Source's store for later
// resolution; otherwise it carries a nil store (fine for tests that never
// dereference a persisted digest).
func ReadSlot[L any, N any, A any](r io.Reader, restoreLeaf func(io.Reader) (L, error)) (Handle[L, N, A], error) {
	tag, err := codec.ReadByte(r)
	if err != nil {
		return Handle[L, N, A]{}, err
	}
	switch tag {
	case 0:
		return Empty[L, N, A](), nil
	case 1:
		l, err := restoreLeaf(r)
		if err != nil {
			return Handle[L, N, A]{}, err
		}
		return Leaf[L, N, A](l), nil
	case 2:
		buf := make([]byte, digest.Size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Handle[L, N, A]{}, xerrors.Errorf("handle: reading persisted digest: %w", err)
		}
		var s *store.Store
		if src, ok := r.(*store.Source); ok {
			s = src.Store()
		}
		snap := store.NewSnapshot[N](s, digest.FromBytes(buf))
		return Persisted[L, N, A](snap), nil
	default:
		return Handle[L, N, A]{}, xerrors.Errorf("handle: unknown slot tag %d: %w", tag, codec.ErrMalformed)
	}
}
