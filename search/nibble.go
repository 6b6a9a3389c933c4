package search

import "github.com/iotaledger/kelvin/handle"

// SelectNibble descends a radix trie: sharedPrefixLen[i] is the nibble-count of
// shared prefix already consumed between the search key and child i's own
// edge label (computed by the caller, which owns the nibble-comparison
// logic, see the radix package). The child with a nonzero shared prefix
// is where the key must continue, per standard radix trie descent; a
// child entirely consumed (sharedPrefixLen[i] equals the full remaining key
// length) is a Leaf match, anything else is a Path continuation.
func SelectNibble[L any, N any, A any](
	handles []*handle.Handle[L, N, A],
	sharedPrefixLen []int,
	remainingKeyLen int,
) Result {
	for i, h := range handles {
		if kindOf(h) == KindNone {
			continue
		}
		if i >= len(sharedPrefixLen) || sharedPrefixLen[i] == 0 {
			continue
		}
		if sharedPrefixLen[i] == remainingKeyLen && kindOf(h) == KindLeaf {
			return Leaf(i)
		}
		return Path(i)
	}
	return None()
}
