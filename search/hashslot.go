package search

import "github.com/iotaledger/kelvin/handle"

// SelectHashSlot descends straight into the child at slot (one nibble's
// worth of a leaf's hash at the current trie depth), used by hamt. Unlike
// First this never scans: the slot is computed by the caller from the
// key's hash before calling in.
func SelectHashSlot[L any, N any, A any](handles []*handle.Handle[L, N, A], slot int) Result {
	if slot < 0 || slot >= len(handles) {
		return None()
	}
	switch kindOf(handles[slot]) {
	case KindLeaf:
		return Leaf(slot)
	case KindPath:
		return Path(slot)
	default:
		return None()
	}
}
