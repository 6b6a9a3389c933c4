package hamt

import (
	"io"

	"github.com/iotaledger/kelvin/branch"
	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/iter"
	"github.com/iotaledger/kelvin/search"
	"github.com/iotaledger/kelvin/store"
)

// Map is a persistent, content-addressed hash map. The zero value is not
// usable; construct with New.
type Map[K comparable, V any] struct {
	store      *store.Store
	codecs     Codecs[K, V]
	ops        handle.Ops[KV[K, V], Node[K, V], Anno]
	asCompound branch.AsCompound[KV[K, V], Node[K, V], Anno]
	root       handle.Handle[KV[K, V], Node[K, V], Anno]
}

// New creates an empty Map backed by s.
func New[K comparable, V any](s *store.Store, codecs Codecs[K, V]) *Map[K, V] {
	m := &Map[K, V]{store: s, codecs: codecs}
	m.asCompound = func(n *Node[K, V]) compound.Compound[KV[K, V], Node[K, V], Anno] { return n }
	m.ops = m.buildOps()
	m.root = handle.Owned[KV[K, V], Node[K, V], Anno](Node[K, V]{})
	return m
}

func (m *Map[K, V]) buildOps() handle.Ops[KV[K, V], Node[K, V], Anno] {
	var ops handle.Ops[KV[K, V], Node[K, V], Anno]
	ops = handle.Ops[KV[K, V], Node[K, V], Anno]{
		DecodeNode: func(r io.Reader) (Node[K, V], error) {
			return decodeNode(r, m.codecs)
		},
		CloneNode: func(n Node[K, V]) Node[K, V] { return n },
		Inject:    func(kv KV[K, V]) Anno { return Anno{Count: 1} },
		Annotate: func(n Node[K, V]) Anno {
			var total uint64
			for i := 0; i < Buckets; i++ {
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

// Count returns the number of key/value pairs in the map.
func (m *Map[K, V]) Count() (uint64, error) {
	a, err := m.root.Annotation(m.store, m.ops)
	if err != nil {
		return 0, err
	}
	if a == nil {
		return 0, nil
	}
	return a.Count, nil
}

// Nth returns the n'th leaf in iteration order, skipping whole sub-trees
// via the Cardinality annotation. Returns ok=false if i is past the last
// element.
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
			if i >= a.Count {
				i -= a.Count
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

// Get returns the value stored under key, and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool, error) {
	var zero V
	hv := m.codecs.HashKey(key)
	br, err := branch.New(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return zero, false, err
	}
	for depth := 0; ; depth++ {
		slot := calculateSlot(hv, depth)
		children := br.Children()
		res := search.SelectHashSlot(children, slot)
		switch res.Kind {
		case search.KindNone:
			return zero, false, nil
		case search.KindLeaf:
			kv, err := children[res.Index].LeafValue()
			if err != nil {
				return zero, false, err
			}
			if kv.Key == key {
				return kv.Value, true, nil
			}
			return zero, false, nil
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
type ValRefMut[K comparable, V any] struct {
	branch *branch.BranchMut[KV[K, V], Node[K, V], Anno]
	kv     *KV[K, V]
}

// Value returns a pointer to the value for in-place mutation.
func (r *ValRefMut[K, V]) Value() *V { return &r.kv.Value }

// Close releases the underlying cursor.
func (r *ValRefMut[K, V]) Close() { r.branch.Close() }

// GetMut opens a mutating cursor down to key's leaf and returns a value
// reference, promoting shared or persisted nodes along the path to
// owned. Returns ok=false (and no reference) if key is absent.
func (m *Map[K, V]) GetMut(key K) (*ValRefMut[K, V], bool, error) {
	hv := m.codecs.HashKey(key)
	b, err := branch.NewMut(&m.root, m.store, m.ops, m.asCompound)
	if err != nil {
		return nil, false, err
	}
	for depth := 0; ; depth++ {
		child := b.ChildHandle(calculateSlot(hv, depth))
		switch child.Kind() {
		case handle.KindEmpty:
			b.Close()
			return nil, false, nil
		case handle.KindLeaf:
			kv, err := child.LeafValueMut()
			if err != nil {
				b.Close()
				return nil, false, err
			}
			if kv.Key != key {
				b.Close()
				return nil, false, nil
			}
			return &ValRefMut[K, V]{branch: b, kv: kv}, true, nil
		default:
			if err := b.Descend(calculateSlot(hv, depth)); err != nil {
				b.Close()
				return nil, false, err
			}
		}
	}
}

// Insert adds or updates key, returning the previous value if any.
func (m *Map[K, V]) Insert(key K, value V) (V, bool, error) {
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return m.subInsert(node, 0, m.codecs.HashKey(key), key, value)
}

func (m *Map[K, V]) subInsert(n *Node[K, V], depth int, hv uint64, key K, value V) (V, bool, error) {
	var zero V
	s := calculateSlot(hv, depth)
	slot := compound.SlotAt[KV[K, V], Node[K, V], Anno](n, s)
	defer slot.Release()
	child := slot.Handle()

	switch child.Kind() {
	case handle.KindEmpty:
		child.Replace(handle.Leaf[KV[K, V], Node[K, V], Anno](KV[K, V]{Key: key, Value: value}))
		return zero, false, nil
	case handle.KindLeaf:
		existing, err := child.LeafValue()
		if err != nil {
			return zero, false, err
		}
		if existing.Key == key {
			child.Replace(handle.Leaf[KV[K, V], Node[K, V], Anno](KV[K, V]{Key: key, Value: value}))
			return existing.Value, true, nil
		}
		var newNode Node[K, V]
		if _, _, err := m.subInsert(&newNode, depth+1, hv, key, value); err != nil {
			return zero, false, err
		}
		oldHash := m.codecs.HashKey(existing.Key)
		if _, _, err := m.subInsert(&newNode, depth+1, oldHash, existing.Key, existing.Value); err != nil {
			return zero, false, err
		}
		child.Replace(handle.Owned[KV[K, V], Node[K, V], Anno](newNode))
		return zero, false, nil
	default:
		sub, err := child.NodeMut(m.store, m.ops)
		if err != nil {
			return zero, false, err
		}
		return m.subInsert(sub, depth+1, hv, key, value)
	}
}

// Remove deletes key, returning the removed value if it was present.
func (m *Map[K, V]) Remove(key K) (V, bool, error) {
	slot := compound.NewSlot(&m.root)
	defer slot.Release()
	node, err := m.root.NodeMut(m.store, m.ops)
	if err != nil {
		var zero V
		return zero, false, err
	}
	kv, removed, _, err := m.subRemove(node, 0, m.codecs.HashKey(key), key)
	if err != nil || !removed {
		var zero V
		return zero, false, err
	}
	return kv.Value, true, nil
}

// subRemove returns (removedLeaf, removed, collapsedSingleton, err). A
// collapsedSingleton value is returned when this node, after the removal,
// held exactly one remaining leaf and the caller (at depth > 0) should
// fold it back into its own slot as a plain Leaf rather than a Node.
func (m *Map[K, V]) subRemove(n *Node[K, V], depth int, hv uint64, key K) (removedKV KV[K, V], removed bool, singleton *KV[K, V], err error) {
	s := calculateSlot(hv, depth)
	slot := compound.SlotAt[KV[K, V], Node[K, V], Anno](n, s)
	defer slot.Release()
	child := slot.Handle()

	switch child.Kind() {
	case handle.KindEmpty:
		return KV[K, V]{}, false, nil, nil
	case handle.KindLeaf:
		existing, lerr := child.LeafValue()
		if lerr != nil {
			return KV[K, V]{}, false, nil, lerr
		}
		if existing.Key != key {
			return KV[K, V]{}, false, nil, nil
		}
		child.Replace(handle.Empty[KV[K, V], Node[K, V], Anno]())
		removedKV = existing
		removed = true
	default:
		sub, serr := child.NodeMut(m.store, m.ops)
		if serr != nil {
			return KV[K, V]{}, false, nil, serr
		}
		kv, ok, collapsed, rerr := m.subRemove(sub, depth+1, hv, key)
		if rerr != nil || !ok {
			return KV[K, V]{}, false, nil, rerr
		}
		removedKV, removed = kv, true
		if collapsed != nil {
			child.Replace(handle.Leaf[KV[K, V], Node[K, V], Anno](*collapsed))
		}
	}

	if depth == 0 || !removed {
		return removedKV, removed, nil, nil
	}
	if single, ok, serr := singletonLeaf(n); serr == nil && ok {
		return removedKV, removed, &single, nil
	} else if serr != nil {
		return removedKV, removed, nil, serr
	}
	return removedKV, removed, nil, nil
}

// singletonLeaf reports whether n has exactly one non-empty child and it
// is a leaf, returning that leaf so the caller can collapse the node.
func singletonLeaf[K comparable, V any](n *Node[K, V]) (KV[K, V], bool, error) {
	found := -1
	for i := 0; i < Buckets; i++ {
		switch n.children[i].Kind() {
		case handle.KindEmpty:
			continue
		case handle.KindLeaf:
			if found >= 0 {
				return KV[K, V]{}, false, nil
			}
			found = i
		default:
			return KV[K, V]{}, false, nil
		}
	}
	if found < 0 {
		return KV[K, V]{}, false, nil
	}
	kv, err := n.children[found].LeafValue()
	if err != nil {
		return KV[K, V]{}, false, err
	}
	n.children[found] = handle.Empty[KV[K, V], Node[K, V], Anno]()
	return kv, true, nil
}

// Iter returns an iterator over every key/value pair, in trie order
// (unspecified relative to key ordering).
func (m *Map[K, V]) Iter() (*iter.Leaves[KV[K, V], Node[K, V], Anno], error) {
	return iter.New(&m.root, m.store, m.ops, m.asCompound)
}

// Keys returns every key, in iteration order.
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

// Values returns every value, in iteration order.
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
	if err := compound.PersistHandle[KV[K, V], Node[K, V], Anno](
		&m.root, m.store, m.ops, m.asCompound, asCodec,
	); err != nil {
		return store.Snapshot[Node[K, V]]{}, err
	}
	snap, _ := m.root.Snapshot()
	return snap, nil
}
