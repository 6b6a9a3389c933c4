package twothree

import (
	"io"

	"github.com/iotaledger/kelvin/annotation"
	"github.com/iotaledger/kelvin/branch"
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/common"
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/iter"
	"github.com/iotaledger/kelvin/search"
	"github.com/iotaledger/kelvin/store"
)

// Map is a persistent, content-addressed ordered map backed by a 2-3
// tree. The zero value is not usable; construct with New.
type Map[K annotation.Ordered[K], V any] struct {
	store      *store.Store
	codecs     Codecs[K, V]
	ops        handle.Ops[KV[K, V], Node[K, V], Anno[K]]
	asCompound branch.AsCompound[KV[K, V], Node[K, V], Anno[K]]
	root       handle.Handle[KV[K, V], Node[K, V], Anno[K]]
}

type hnd[K annotation.Ordered[K], V any] = handle.Handle[KV[K, V], Node[K, V], Anno[K]]

func compareKey[K annotation.Ordered[K]](a, b K) int { return a.Compare(b) }

// New creates an empty Map backed by s.
func New[K annotation.Ordered[K], V any](s *store.Store, codecs Codecs[K, V]) *Map[K, V] {
	m := &Map[K, V]{store: s, codecs: codecs}
	m.asCompound = func(n *Node[K, V]) compound.Compound[KV[K, V], Node[K, V], Anno[K]] { return n }
	m.ops = m.buildOps()
	m.root = handle.Owned[KV[K, V], Node[K, V], Anno[K]](Node[K, V]{})
	return m
}

func (m *Map[K, V]) buildOps() handle.Ops[KV[K, V], Node[K, V], Anno[K]] {
	var ops handle.Ops[KV[K, V], Node[K, V], Anno[K]]
	ops = handle.Ops[KV[K, V], Node[K, V], Anno[K]]{
		DecodeNode: func(r io.Reader) (Node[K, V], error) {
			return decodeNode[K, V](r, m.codecs)
		},
		CloneNode: func(n Node[K, V]) Node[K, V] {
			cloned := Node[K, V]{children: make([]hnd[K, V], len(n.children))}
			copy(cloned.children, n.children)
			return cloned
		},
		Inject: func(kv KV[K, V]) Anno[K] {
			return Anno[K]{First: annotation.MaxKey[K]{Key: kv.Key}, Second: annotation.Cardinality[uint64]{Count: 1}}
		},
		Annotate: func(n Node[K, V]) Anno[K] {
			var result Anno[K]
			first := true
			for i := range n.children {
				a, err := n.children[i].Annotation(m.store, ops)
				if err != nil || a == nil {
					continue
				}
				if first {
					result = *a
					first = false
				} else {
					result = Anno[K]{
						First:  result.First.Combine(a.First),
						Second: result.Second.Combine(a.Second),
					}
				}
			}
			return result
		},
	}
	return ops
}

// Count returns the number of key/value pairs in the map.
func (m *Map[K, V]) Count() (uint64, error) {
	a, err := m.root.Annotation(m.store, m.ops)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.Second.Count, nil
}

func (m *Map[K, V]) handleKey(h *hnd[K, V]) (K, error) {
	var zero K
	a, err := h.Annotation(m.store, m.ops)
	if err != nil {
		return zero, err
	}
	common.Assert(a != nil, "twothree: handle carries no annotation")
	return a.First.Key, nil
}

func levelMaxKeys[K annotation.Ordered[K], V any](m *Map[K, V], children []*hnd[K, V]) ([]K, error) {
	maxKeys := make([]K, len(children))
	for i, c := range children {
		a, err := c.Annotation(m.store, m.ops)
		if err != nil {
			return nil, err
		}
		if a != nil {
			maxKeys[i] = a.First.Key
		}
	}
	return maxKeys, nil
}

func atLeafLevel[K annotation.Ordered[K], V any](children []*hnd[K, V]) bool {
	return len(children) > 0 && children[0].Kind() == handle.KindLeaf
}

// Get returns the value stored under key, and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	br, err := branch.New(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return zero, false, err
	}
	for {
		children := br.Children()
		maxKeys, err := levelMaxKeys(m, children)
		if err != nil {
			return zero, false, err
		}
		res := search.SelectKeyed(children, maxKeys, key, compareKey[K], atLeafLevel(children))
		switch res.Kind {
		case search.KindNone:
			return zero, false, nil
		case search.KindLeaf:
			kv, err := children[res.Index].LeafValue()
			if err != nil {
				return zero, false, err
			}
			return kv.Value, true, nil
		case search.KindPath:
			if err := br.Descend(res.Index); err != nil {
				return zero, false, err
			}
		}
	}
}

// ValRefMut projects mutable access to the value stored under a key,
// obtained via GetMut. Close unwinds the underlying cursor, invalidating
// cached annotations and digests along the promoted path; callers must
// defer Close immediately after a successful GetMut.
type ValRefMut[K annotation.Ordered[K], V any] struct {
	branch *branch.BranchMut[KV[K, V], Node[K, V], Anno[K]]
	kv     *KV[K, V]
}

// Value returns a pointer to the value for in-place mutation. The key
// must not be changed through it; keyed search depends on the tree's
// order.
func (r *ValRefMut[K, V]) Value() *V { return &r.kv.Value }

// Close releases the underlying cursor.
func (r *ValRefMut[K, V]) Close() { r.branch.Close() }

// GetMut opens a mutating cursor down to key's leaf and returns a value
// reference, promoting shared or persisted nodes along the path to
// owned. Returns ok=false (and no reference) if key is absent.
func (m *Map[K, V]) GetMut(key K) (*ValRefMut[K, V], bool, error) {
	b, err := branch.NewMut(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return nil, false, err
	}
	for {
		children := b.Children()
		maxKeys, err := levelMaxKeys(m, children)
		if err != nil {
			b.Close()
			return nil, false, err
		}
		res := search.SelectKeyed(children, maxKeys, key, compareKey[K], atLeafLevel(children))
		switch res.Kind {
		case search.KindNone:
			b.Close()
			return nil, false, nil
		case search.KindLeaf:
			kv, err := children[res.Index].LeafValueMut()
			if err != nil {
				b.Close()
				return nil, false, err
			}
			return &ValRefMut[K, V]{branch: b, kv: kv}, true, nil
		case search.KindPath:
			if err := b.Descend(res.Index); err != nil {
				b.Close()
				return nil, false, err
			}
		}
	}
}

type insertKind int

const (
	insertOK insertKind = iota
	insertReplaced
	insertSplit
)

type insertOutcome[K annotation.Ordered[K], V any] struct {
	kind     insertKind
	replaced V
	split    hnd[K, V]
}

func insertAt[K annotation.Ordered[K], V any](children []hnd[K, V], i int, h hnd[K, V]) []hnd[K, V] {
	children = append(children, hnd[K, V]{})
	copy(children[i+1:], children[i:])
	children[i] = h
	return children
}

// Insert adds or updates key, returning the previous value if any.
func (m *Map[K, V]) Insert(key K, value V) (V, bool, error) {
	var zero V
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		return zero, false, err
	}
	h := handle.Leaf[KV[K, V], Node[K, V], Anno[K]](KV[K, V]{Key: key, Value: value})
	out, err := m.insertInto(node, h, 0)
	if err != nil {
		return zero, false, err
	}
	switch out.kind {
	case insertOK:
		return zero, false, nil
	case insertReplaced:
		return out.replaced, true, nil
	default:
		common.Assert(false, "twothree: insert split bubbled past the root")
		return zero, false, nil
	}
}

func (m *Map[K, V]) insertInto(n *Node[K, V], h hnd[K, V], depth int) (insertOutcome[K, V], error) {
	annKey, err := m.handleKey(&h)
	if err != nil {
		return insertOutcome[K, V]{}, err
	}

	const (
		actNone = iota
		actReplace
		actInsert
		actSplit
	)
	action, actionIndex := actNone, 0

	if len(n.children) == 0 {
		action, actionIndex = actInsert, 0
	} else {
		children := make([]*hnd[K, V], len(n.children))
		for i := range n.children {
			children[i] = &n.children[i]
		}
		maxKeys, err := levelMaxKeys(m, children)
		if err != nil {
			return insertOutcome[K, V]{}, err
		}
		if atLeafLevel(children) {
			res := search.SelectKeyed(children, maxKeys, annKey, compareKey[K], true)
			if res.Kind == search.KindLeaf {
				action, actionIndex = actReplace, res.Index
			} else {
				// The new leaf slots in before the first greater key, or
				// at the end when it is the largest.
				action, actionIndex = actInsert, len(n.children)
				for i, mk := range maxKeys {
					if compareKey(mk, annKey) > 0 {
						action, actionIndex = actInsert, i
						break
					}
				}
			}
		} else {
			res := search.SelectKeyed(children, maxKeys, annKey, compareKey[K], false)
			common.Assert(res.Kind == search.KindPath, "twothree: no descent target in internal node")
			i := res.Index
			cslot := compound.SlotAt[KV[K, V], Node[K, V], Anno[K]](n, i)
			subNode, err := cslot.Handle().NodeMut(m.store, m.ops)
			if err != nil {
				cslot.Release()
				return insertOutcome[K, V]{}, err
			}
			subOut, err := m.insertInto(subNode, h, depth+1)
			cslot.Release()
			if err != nil {
				return insertOutcome[K, V]{}, err
			}
			switch subOut.kind {
			case insertOK:
				return insertOutcome[K, V]{kind: insertOK}, nil
			case insertReplaced:
				return insertOutcome[K, V]{kind: insertReplaced, replaced: subOut.replaced}, nil
			case insertSplit:
				h = subOut.split
				action, actionIndex = actInsert, i+1
			}
		}
	}

	for {
		switch action {
		case actReplace:
			old := n.children[actionIndex]
			n.children[actionIndex] = h
			oldKV, err := old.LeafValue()
			if err != nil {
				return insertOutcome[K, V]{}, err
			}
			return insertOutcome[K, V]{kind: insertReplaced, replaced: oldKV.Value}, nil
		case actInsert:
			if len(n.children) < maxChildren {
				n.children = insertAt(n.children, actionIndex, h)
				return insertOutcome[K, V]{kind: insertOK}, nil
			}
			action = actSplit
		case actSplit:
			i := actionIndex
			popped := n.children[len(n.children)-1]
			n.children = n.children[:len(n.children)-1]

			var newNode Node[K, V]
			if i < minChildren {
				second := n.children[len(n.children)-1]
				n.children = n.children[:len(n.children)-1]
				newNode.children = append(newNode.children, second, popped)
				n.children = insertAt(n.children, i, h)
			} else {
				newNode.children = append(newNode.children, popped)
				newNode.children = insertAt(newNode.children, i-minChildren, h)
			}
			newHandle := handle.Owned[KV[K, V], Node[K, V], Anno[K]](newNode)

			if depth == 0 {
				oldRoot := *n
				*n = Node[K, V]{}
				n.children = append(n.children, handle.Owned[KV[K, V], Node[K, V], Anno[K]](oldRoot), newHandle)
				return insertOutcome[K, V]{kind: insertOK}, nil
			}
			return insertOutcome[K, V]{kind: insertSplit, split: newHandle}, nil
		}
	}
}

type removeKind int

const (
	removeNoop removeKind = iota
	removeRemoved
	removeMerge
)

type removeOutcome[K annotation.Ordered[K], V any] struct {
	kind removeKind
	leaf KV[K, V]
}

// Remove deletes key, returning the removed value if it was present.
func (m *Map[K, V]) Remove(key K) (V, bool, error) {
	var zero V
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		return zero, false, err
	}
	out, err := m.removeFrom(node, key, 0)
	if err != nil || out.kind == removeNoop {
		return zero, false, err
	}
	return out.leaf.Value, true, nil
}

func (m *Map[K, V]) removeFrom(n *Node[K, V], key K, depth int) (removeOutcome[K, V], error) {
	const (
		actNone = iota
		actRemove
		actMerge
	)
	action, actionIndex := actNone, 0
	var mergeLeaf KV[K, V]

	if len(n.children) > 0 {
		children := make([]*hnd[K, V], len(n.children))
		for i := range n.children {
			children[i] = &n.children[i]
		}
		maxKeys, err := levelMaxKeys(m, children)
		if err != nil {
			return removeOutcome[K, V]{}, err
		}
		res := search.SelectKeyed(children, maxKeys, key, compareKey[K], atLeafLevel(children))
		switch res.Kind {
		case search.KindLeaf:
			action, actionIndex = actRemove, res.Index
		case search.KindPath:
			i := res.Index
			child := &n.children[i]
			if child.Kind() != handle.KindLeaf {
				sub, err := child.Annotation(m.store, m.ops)
				if err != nil {
					return removeOutcome[K, V]{}, err
				}
				if sub.First.Key.Compare(key) >= 0 {
					cslot := compound.SlotAt[KV[K, V], Node[K, V], Anno[K]](n, i)
					subNode, err := cslot.Handle().NodeMut(m.store, m.ops)
					if err != nil {
						cslot.Release()
						return removeOutcome[K, V]{}, err
					}
					subOut, err := m.removeFrom(subNode, key, depth+1)
					cslot.Release()
					if err != nil {
						return removeOutcome[K, V]{}, err
					}
					switch subOut.kind {
					case removeRemoved:
						return removeOutcome[K, V]{kind: removeRemoved, leaf: subOut.leaf}, nil
					case removeMerge:
						action, actionIndex, mergeLeaf = actMerge, i, subOut.leaf
					}
				}
			}
		case search.KindNone:
			return removeOutcome[K, V]{kind: removeNoop}, nil
		}
	}

	switch action {
	case actNone:
		return removeOutcome[K, V]{kind: removeNoop}, nil
	case actRemove:
		removed := n.children[actionIndex]
		n.children = append(n.children[:actionIndex], n.children[actionIndex+1:]...)
		kv, err := removed.LeafValue()
		if err != nil {
			return removeOutcome[K, V]{}, err
		}
		if len(n.children) < minChildren && depth > 0 {
			return removeOutcome[K, V]{kind: removeMerge, leaf: kv}, nil
		}
		return removeOutcome[K, V]{kind: removeRemoved, leaf: kv}, nil
	default: // actMerge
		i := actionIndex
		toMerge := n.children[i]
		n.children[i] = handle.Empty[KV[K, V], Node[K, V], Anno[K]]()
		subNode, err := toMerge.NodeMut(m.store, m.ops)
		if err != nil {
			return removeOutcome[K, V]{}, err
		}

		if i > 0 {
			pslot := compound.SlotAt[KV[K, V], Node[K, V], Anno[K]](n, i-1)
			prevNode, err := pslot.Handle().NodeMut(m.store, m.ops)
			if err != nil {
				pslot.Release()
				return removeOutcome[K, V]{}, err
			}
			if len(prevNode.children) == minChildren {
				popped := subNode.children[len(subNode.children)-1]
				subNode.children = subNode.children[:len(subNode.children)-1]
				prevNode.children = append(prevNode.children, popped)
			} else {
				popped := prevNode.children[len(prevNode.children)-1]
				prevNode.children = prevNode.children[:len(prevNode.children)-1]
				subNode.children = insertAt(subNode.children, 0, popped)
			}
			pslot.Release()
		} else {
			nslot := compound.SlotAt[KV[K, V], Node[K, V], Anno[K]](n, i+1)
			nextNode, err := nslot.Handle().NodeMut(m.store, m.ops)
			if err != nil {
				nslot.Release()
				return removeOutcome[K, V]{}, err
			}
			if len(nextNode.children) == minChildren {
				popped := subNode.children[len(subNode.children)-1]
				subNode.children = subNode.children[:len(subNode.children)-1]
				nextNode.children = insertAt(nextNode.children, 0, popped)
			} else {
				popped := nextNode.children[0]
				nextNode.children = nextNode.children[1:]
				subNode.children = append(subNode.children, popped)
			}
			nslot.Release()
		}

		if len(subNode.children) > 0 {
			n.children[i] = handle.Owned[KV[K, V], Node[K, V], Anno[K]](*subNode)
			return removeOutcome[K, V]{kind: removeRemoved, leaf: mergeLeaf}, nil
		}
		n.children = append(n.children[:i], n.children[i+1:]...)
		if len(n.children) < minChildren {
			if depth > 0 {
				return removeOutcome[K, V]{kind: removeMerge, leaf: mergeLeaf}, nil
			}
			singleton := n.children[0]
			singletonNode, err := singleton.NodeMut(m.store, m.ops)
			if err != nil {
				return removeOutcome[K, V]{}, err
			}
			*n = *singletonNode
			return removeOutcome[K, V]{kind: removeRemoved, leaf: mergeLeaf}, nil
		}
		return removeOutcome[K, V]{kind: removeRemoved, leaf: mergeLeaf}, nil
	}
}

// Nth returns the i'th key/value pair in ascending key order, skipping
// whole sub-trees via the Cardinality projection of each child's
// annotation. Returns ok=false if i is past the last element.
func (m *Map[K, V]) Nth(i uint64) (KV[K, V], bool, error) {
	var zero KV[K, V]
	br, err := branch.New(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return zero, false, err
	}
	for {
		children := br.Children()
		descended := false
		for idx, c := range children {
			if c.IsEmpty() {
				continue
			}
			a, err := c.Annotation(m.store, m.ops)
			if err != nil {
				return zero, false, err
			}
			if a == nil {
				continue
			}
			count := a.Second.Count
			if i >= count {
				i -= count
				continue
			}
			if c.Kind() == handle.KindLeaf {
				kv, err := c.LeafValue()
				if err != nil {
					return zero, false, err
				}
				return kv, true, nil
			}
			if err := br.Descend(idx); err != nil {
				return zero, false, err
			}
			descended = true
			break
		}
		if !descended {
			return zero, false, nil
		}
	}
}

// Iter returns an iterator over every key/value pair in ascending key
// order (a 2-3 tree's leaves are already sorted left to right).
func (m *Map[K, V]) Iter() (*iter.Leaves[KV[K, V], Node[K, V], Anno[K]], error) {
	return iter.New(&m.root, m.store, m.ops, m.asCompound)
}

// Keys returns every key in ascending order.
func (m *Map[K, V]) Keys() ([]K, error) {
	it, err := m.Iter()
	if err != nil {
		return nil, err
	}
	kvs, err := iter.Collect(it)
	if err != nil {
		return nil, err
	}
	keys := make([]K, len(kvs))
	for i, kv := range kvs {
		keys[i] = kv.Key
	}
	return keys, nil
}

// Values returns every value, in ascending key order.
func (m *Map[K, V]) Values() ([]V, error) {
	it, err := m.Iter()
	if err != nil {
		return nil, err
	}
	kvs, err := iter.Collect(it)
	if err != nil {
		return nil, err
	}
	values := make([]V, len(kvs))
	for i, kv := range kvs {
		values[i] = kv.Value
	}
	return values, nil
}

// Persist walks the map's tree bottom-up, promoting every handle to
// Persisted and returning a store.Snapshot for the whole map.
func (m *Map[K, V]) Persist() (store.Snapshot[Node[K, V]], error) {
	asCodec := func(n Node[K, V]) codec.Codec { return nodeCodec[K, V]{node: n, codecs: m.codecs} }
	if err := compound.PersistHandle[KV[K, V], Node[K, V], Anno[K]](
		&m.root, m.store, m.ops, m.asCompound, asCodec,
	); err != nil {
		return store.Snapshot[Node[K, V]]{}, err
	}
	snap, _ := m.root.Snapshot()
	return snap, nil
}
