// Package proof implements minimal membership proofs: an ordered list
// of levels from root to leaf, each recording enough of the node's
// serialized form to recompute its digest once the descended child's
// contribution is known. Verification recomputes digests bottom-up and
// checks equality against a supplied root digest.
//
// Each level holds the node's wire bytes split around the descended
// child's slot, which keeps a Proof usable with no store at all; the
// sibling digests a verifier needs are embedded verbatim inside the
// recorded segments, since persisted child slots serialize as their
// digest.
package proof

import (
	"github.com/iotaledger/kelvin/digest"
)

// Level is one step of the root-to-leaf path: the node's persisted wire
// bytes split around the descended child's slot. Re-inserting that slot's
// bytes between Prefix and Suffix reproduces the exact byte stream the
// node hashed to when it was persisted.
type Level struct {
	Prefix []byte
	Suffix []byte
}

// Proof is the ordered root-to-leaf path a collection's Prove method
// assembles, plus the leaf's inline slot bytes at the deepest level.
type Proof struct {
	Levels   []Level
	LeafSlot []byte
}

// PersistedSlot is the wire form of a Persisted child handle: tag byte 2
// followed by the digest (see handle.WriteSlot). Exported for collections
// assembling proof levels by hand.
func PersistedSlot(d digest.Digest) []byte {
	out := make([]byte, 0, 1+digest.Size)
	out = append(out, 2)
	out = append(out, d.Bytes()...)
	return out
}

// Verify recomputes digests bottom-up along the path and compares the
// result against root. At the deepest level the leaf's inline slot bytes
// are spliced between Prefix and Suffix; every level above splices in the
// Persisted slot form of the digest computed one level below. Any
// mutation that changed a digest anywhere along the path (the leaf
// itself, or a sibling embedded in a Prefix/Suffix) makes the recomputed
// root diverge.
func (p Proof) Verify(root digest.Digest) bool {
	if len(p.Levels) == 0 {
		return false
	}
	slot := p.LeafSlot
	var d digest.Digest
	for i := len(p.Levels) - 1; i >= 0; i-- {
		lvl := p.Levels[i]
		h := digest.New()
		_, _ = h.Write(lvl.Prefix)
		_, _ = h.Write(slot)
		_, _ = h.Write(lvl.Suffix)
		d = h.SumDigest()
		slot = PersistedSlot(d)
	}
	return d == root
}
