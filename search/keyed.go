package search

import "github.com/iotaledger/kelvin/handle"

// SelectKeyed descends an ordered collection (twothree) toward key: scan
// children left to right and take the first whose MaxKey projection is
// >= key, per a standard B-tree-style descent. maxKeys[i] is the MaxKey
// projection already read off child i's annotation; compare(a, b) follows
// the usual three-way convention (negative if a < b).
//
// atLeafLevel distinguishes an exact-match leaf probe (returns Leaf when
// the matched child's key equals the target) from an internal descent
// (always returns Path), since two-three tree leaves and internal nodes
// share this same selection rule and only differ in what "found" means.
//
// If no child's projection reaches key, the last non-empty child is
// still offered as a Path when it is itself a node (never a leaf): an
// insert of a key greater than everything in the tree has to descend
// into the rightmost subtree to find its place, even though that
// subtree's own MaxKey falls short of the new key.
func SelectKeyed[L any, N any, A any, K any](
	handles []*handle.Handle[L, N, A],
	maxKeys []K,
	key K,
	compare func(a, b K) int,
	atLeafLevel bool,
) Result {
	for i, h := range handles {
		if kindOf(h) == KindNone {
			continue
		}
		if i >= len(maxKeys) {
			break
		}
		if compare(maxKeys[i], key) >= 0 {
			if atLeafLevel && compare(maxKeys[i], key) == 0 {
				return Leaf(i)
			}
			if atLeafLevel {
				return None()
			}
			return Path(i)
		}
	}
	if !atLeafLevel {
		for i := len(handles) - 1; i >= 0; i-- {
			if kindOf(handles[i]) == KindPath {
				return Path(i)
			}
			if kindOf(handles[i]) != KindNone {
				break
			}
		}
	}
	return None()
}
