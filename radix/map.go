package radix

import (
	"io"

	"github.com/iotaledger/kelvin/branch"
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/common"
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/iter"
	"github.com/iotaledger/kelvin/search"
	"github.com/iotaledger/kelvin/store"
)

// Map is a persistent, content-addressed radix trie keyed by byte
// strings. The zero value is not usable; construct with New.
type Map[V any] struct {
	store      *store.Store
	codecs     Codecs[V]
	ops        handle.Ops[V, Node[V], Anno]
	asCompound branch.AsCompound[V, Node[V], Anno]
	root       handle.Handle[V, Node[V], Anno]
}

// New creates an empty Map backed by s.
func New[V any](s *store.Store, codecs Codecs[V]) *Map[V] {
	m := &Map[V]{store: s, codecs: codecs}
	m.asCompound = func(n *Node[V]) compound.Compound[V, Node[V], Anno] { return n }
	m.ops = m.buildOps()
	m.root = handle.Owned[V, Node[V], Anno](Node[V]{})
	return m
}

func (m *Map[V]) buildOps() handle.Ops[V, Node[V], Anno] {
	var ops handle.Ops[V, Node[V], Anno]
	ops = handle.Ops[V, Node[V], Anno]{
		DecodeNode: func(r io.Reader) (Node[V], error) {
			return decodeNode(r, m.codecs)
		},
		CloneNode: func(n Node[V]) Node[V] {
			cloned := Node[V]{children: n.children}
			for i := range n.prefixes {
				cloned.prefixes[i] = n.prefixes[i].clone()
			}
			return cloned
		},
		Inject: func(V) Anno { return Anno{Count: 1} },
		Annotate: func(n Node[V]) Anno {
			var total uint64
			for i := range n.children {
				a, err := n.children[i].Annotation(m.store, ops)
				if err == nil && a != nil {
					total += a.Count
				}
			}
			return Anno{Count: total}
		},
	}
	return ops
}

// Count returns the number of keys in the map.
func (m *Map[V]) Count() (uint64, error) {
	a, err := m.root.Annotation(m.store, m.ops)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.Count, nil
}

// Get returns the value stored under key, and whether it was present.
func (m *Map[V]) Get(key []byte) (V, bool, error) {
	var zero V
	br, err := branch.New(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return zero, false, err
	}
	nibs := NewNibbles(key)
	for {
		children := br.Children()
		if nibs.Len() == 0 {
			c := children[0]
			if c.Kind() != handle.KindLeaf {
				return zero, false, nil
			}
			v, err := c.LeafValue()
			if err != nil {
				return zero, false, err
			}
			return v, true, nil
		}
		node := br.Node()
		i := int(nibs.Get(0)) + 1
		rest := nibs
		rest.TrimFront(1)
		pfx := node.prefixes[i-1].View()
		commonLen := rest.CommonPrefixLen(pfx)

		// The addressed child is descendable only when its whole edge
		// matches; a partial edge match means the key diverges mid-edge.
		shared := make([]int, buckets)
		if !children[i].IsEmpty() && commonLen == pfx.Len() {
			shared[i] = 1 + commonLen
		}
		res := search.SelectNibble(children, shared, nibs.Len())
		switch res.Kind {
		case search.KindNone:
			return zero, false, nil
		case search.KindLeaf:
			v, err := children[res.Index].LeafValue()
			if err != nil {
				return zero, false, err
			}
			return v, true, nil
		case search.KindPath:
			if children[res.Index].Kind() == handle.KindLeaf {
				// the stored key ends where the edge does but the
				// searched key continues
				return zero, false, nil
			}
			if err := br.Descend(res.Index); err != nil {
				return zero, false, err
			}
			nibs.TrimFront(1 + commonLen)
		}
	}
}

// ValRefMut projects mutable access to the value stored under a key,
// obtained via GetMut. Close unwinds the underlying cursor, invalidating
// cached annotations and digests along the promoted path; callers must
// defer Close immediately after a successful GetMut.
type ValRefMut[V any] struct {
	branch *branch.BranchMut[V, Node[V], Anno]
	value  *V
}

// Value returns a pointer to the value for in-place mutation.
func (r *ValRefMut[V]) Value() *V { return r.value }

// Close releases the underlying cursor.
func (r *ValRefMut[V]) Close() { r.branch.Close() }

// GetMut opens a mutating cursor down to key's leaf and returns a value
// reference, promoting shared or persisted nodes along the path to
// owned. Returns ok=false (and no reference) if key is absent.
func (m *Map[V]) GetMut(key []byte) (*ValRefMut[V], bool, error) {
	b, err := branch.NewMut(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return nil, false, err
	}
	leafRef := func(h *handle.Handle[V, Node[V], Anno]) (*ValRefMut[V], bool, error) {
		v, err := h.LeafValueMut()
		if err != nil {
			b.Close()
			return nil, false, err
		}
		return &ValRefMut[V]{branch: b, value: v}, true, nil
	}
	nibs := NewNibbles(key)
	for {
		children := b.Children()
		if nibs.Len() == 0 {
			if children[0].Kind() != handle.KindLeaf {
				b.Close()
				return nil, false, nil
			}
			return leafRef(children[0])
		}
		node := b.Node()
		i := int(nibs.Get(0)) + 1
		rest := nibs
		rest.TrimFront(1)
		pfx := node.prefixes[i-1].View()
		commonLen := rest.CommonPrefixLen(pfx)

		shared := make([]int, buckets)
		if !children[i].IsEmpty() && commonLen == pfx.Len() {
			shared[i] = 1 + commonLen
		}
		res := search.SelectNibble(children, shared, nibs.Len())
		switch res.Kind {
		case search.KindNone:
			b.Close()
			return nil, false, nil
		case search.KindLeaf:
			return leafRef(children[res.Index])
		case search.KindPath:
			if children[res.Index].Kind() == handle.KindLeaf {
				b.Close()
				return nil, false, nil
			}
			if err := b.Descend(res.Index); err != nil {
				b.Close()
				return nil, false, err
			}
			nibs.TrimFront(1 + commonLen)
		}
	}
}

// Insert adds or updates key, returning the previous value if any.
func (m *Map[V]) Insert(key []byte, value V) (V, bool, error) {
	var zero V
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		return zero, false, err
	}
	nibs := NewNibbles(key)
	return m.insertInto(node, &nibs, value)
}

func (m *Map[V]) insertInto(n *Node[V], nibs *Nibbles, value V) (V, bool, error) {
	var zero V

	// Keys that are exhausted at this node live in the terminal slot.
	if nibs.Len() == 0 {
		cslot := compound.SlotAt[V, Node[V], Anno](n, 0)
		defer cslot.Release()
		child := cslot.Handle()
		switch child.Kind() {
		case handle.KindEmpty:
			child.Replace(handle.Leaf[V, Node[V], Anno](value))
			return zero, false, nil
		case handle.KindLeaf:
			old, _ := child.Replace(handle.Leaf[V, Node[V], Anno](value))
			return old, true, nil
		default:
			common.Assert(false, "radix: node in terminal leaf position")
			return zero, false, nil
		}
	}

	nib := nibs.PopNibble()
	i := int(nib) + 1
	cslot := compound.SlotAt[V, Node[V], Anno](n, i)
	defer cslot.Release()
	child := cslot.Handle()

	if child.IsEmpty() {
		n.prefixes[i-1] = BufFrom(*nibs)
		child.Replace(handle.Leaf[V, Node[V], Anno](value))
		return zero, false, nil
	}

	pathLen := n.prefixes[i-1].Len()
	commonLen := nibs.CommonPrefixLen(n.prefixes[i-1].View())

	switch {
	case commonLen == nibs.Len() && commonLen == pathLen && child.Kind() == handle.KindLeaf:
		old, _ := child.Replace(handle.Leaf[V, Node[V], Anno](value))
		return old, true, nil

	case commonLen < pathLen:
		// The key diverges (or ends) inside the edge: split it at the
		// shared run, pushing the current handle one level down.
		oldPath := n.prefixes[i-1]
		oldHandle := *child

		var newNode Node[V]
		branchNib := oldPath.View().Get(commonLen)
		sub := oldPath.View()
		sub.TrimFront(commonLen + 1)
		newNode.children[branchNib+1] = oldHandle
		newNode.prefixes[branchNib] = BufFrom(sub)

		nibs.TrimFront(commonLen)
		if _, _, err := m.insertInto(&newNode, nibs, value); err != nil {
			return zero, false, err
		}

		shared := oldPath.View()
		shared.TrimBack(shared.Len() - commonLen)
		n.prefixes[i-1] = BufFrom(shared)
		child.Replace(handle.Owned[V, Node[V], Anno](newNode))
		return zero, false, nil

	case child.Kind() == handle.KindLeaf:
		// The whole edge matched but the key continues past the stored
		// leaf: push the leaf down into a fresh node's terminal slot.
		oldHandle := *child
		var newNode Node[V]
		newNode.children[0] = oldHandle
		nibs.TrimFront(commonLen)
		if _, _, err := m.insertInto(&newNode, nibs, value); err != nil {
			return zero, false, err
		}
		child.Replace(handle.Owned[V, Node[V], Anno](newNode))
		return zero, false, nil

	default:
		sub, err := child.NodeMut(m.store, m.ops)
		if err != nil {
			return zero, false, err
		}
		nibs.TrimFront(commonLen)
		return m.insertInto(sub, nibs, value)
	}
}

type aftermath int

const (
	aftNone aftermath = iota
	aftCollapseLeaf
	aftCollapseEmpty
)

type collapseInfo[V any] struct {
	leaf V
	path NibbleBuf
	slot int
}

// Remove deletes key, returning the removed value if it was present.
// Path compression is restored on the way out: a node left holding a
// single leaf collapses into its parent's edge, and a node left empty
// vanishes, so removing every key leaves every handle Empty.
func (m *Map[V]) Remove(key []byte) (V, bool, error) {
	var zero V
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		return zero, false, err
	}
	nibs := NewNibbles(key)
	removed, found, _, _, err := m.removeFrom(node, &nibs, 0)
	if err != nil || !found {
		return zero, false, err
	}
	return removed, true, nil
}

func (m *Map[V]) removeFrom(n *Node[V], nibs *Nibbles, depth int) (V, bool, aftermath, collapseInfo[V], error) {
	var zero V
	var noCol collapseInfo[V]

	if nibs.Len() == 0 {
		cslot := compound.SlotAt[V, Node[V], Anno](n, 0)
		defer cslot.Release()
		child := cslot.Handle()
		if child.Kind() != handle.KindLeaf {
			return zero, false, aftNone, noCol, nil
		}
		removed, _ := child.Replace(handle.Empty[V, Node[V], Anno]())
		aft, col, err := m.postRemoval(n, depth)
		return removed, true, aft, col, err
	}

	nib := nibs.PopNibble()
	i := int(nib) + 1
	cslot := compound.SlotAt[V, Node[V], Anno](n, i)
	defer cslot.Release()
	child := cslot.Handle()

	if child.IsEmpty() {
		return zero, false, aftNone, noCol, nil
	}

	pathLen := n.prefixes[i-1].Len()
	commonLen := nibs.CommonPrefixLen(n.prefixes[i-1].View())

	switch {
	case commonLen == nibs.Len() && commonLen == pathLen && child.Kind() == handle.KindLeaf:
		n.prefixes[i-1] = NibbleBuf{}
		removed, _ := child.Replace(handle.Empty[V, Node[V], Anno]())
		aft, col, err := m.postRemoval(n, depth)
		return removed, true, aft, col, err

	case commonLen < pathLen, child.Kind() == handle.KindLeaf:
		return zero, false, aftNone, noCol, nil

	default:
		sub, err := child.NodeMut(m.store, m.ops)
		if err != nil {
			return zero, false, aftNone, noCol, err
		}
		nibs.TrimFront(commonLen)
		removed, found, aft, col, err := m.removeFrom(sub, nibs, depth+1)
		if err != nil || !found {
			return zero, found, aftNone, noCol, err
		}
		switch aft {
		case aftCollapseLeaf:
			// Splice the collapsed child's remaining edge onto ours and
			// reattach its last leaf directly.
			joined := n.prefixes[i-1].clone()
			if col.slot > 0 {
				joined.Push(byte(col.slot - 1))
			}
			joined.Append(col.path.View())
			n.prefixes[i-1] = joined
			child.Replace(handle.Leaf[V, Node[V], Anno](col.leaf))
		case aftCollapseEmpty:
			n.prefixes[i-1] = NibbleBuf{}
			child.Replace(handle.Empty[V, Node[V], Anno]())
		}
		aft, col, perr := m.postRemoval(n, depth)
		return removed, true, aft, col, perr
	}
}

// postRemoval decides whether n, after a removal below it, should be
// folded into its parent: gone entirely if nothing remains, or replaced
// by its single surviving leaf with the edge run it sat behind.
func (m *Map[V]) postRemoval(n *Node[V], depth int) (aftermath, collapseInfo[V], error) {
	var noCol collapseInfo[V]
	if depth == 0 {
		return aftNone, noCol, nil
	}
	occupied, leafAt := 0, -1
	for i := range n.children {
		switch n.children[i].Kind() {
		case handle.KindEmpty:
			continue
		case handle.KindLeaf:
			occupied++
			leafAt = i
		default:
			return aftNone, noCol, nil
		}
	}
	switch occupied {
	case 0:
		return aftCollapseEmpty, noCol, nil
	case 1:
		leaf, err := n.children[leafAt].LeafValue()
		if err != nil {
			return aftNone, noCol, err
		}
		col := collapseInfo[V]{leaf: leaf, slot: leafAt}
		if leafAt > 0 {
			col.path = n.prefixes[leafAt-1].clone()
			n.prefixes[leafAt-1] = NibbleBuf{}
		}
		n.children[leafAt] = handle.Empty[V, Node[V], Anno]()
		return aftCollapseLeaf, col, nil
	default:
		return aftNone, noCol, nil
	}
}

// Iter returns an iterator over every value, in ascending key order (the
// terminal slot sorts before any extension, and edges sort by nibble).
func (m *Map[V]) Iter() (*iter.Leaves[V, Node[V], Anno], error) {
	return iter.New(&m.root, m.store, m.ops, m.asCompound)
}

// Persist walks the trie bottom-up, promoting every handle to Persisted
// and returning a store.Snapshot for the whole map.
func (m *Map[V]) Persist() (store.Snapshot[Node[V]], error) {
	asCodec := func(n Node[V]) codec.Codec { return nodeCodec[V]{node: n, codecs: m.codecs} }
	if err := compound.PersistHandle[V, Node[V], Anno](
		&m.root, m.store, m.ops, m.asCompound, asCodec,
	); err != nil {
		return store.Snapshot[Node[V]]{}, err
	}
	snap, _ := m.root.Snapshot()
	return snap, nil
}
