package radix

import (
	"io"
	"math/rand"
	"sort"
	"testing"

	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
	"github.com/stretchr/testify/require"
)

func uint64Codecs() Codecs[uint64] {
	return Codecs[uint64]{
		EncodeValue: func(w io.Writer, v uint64) error { return codec.WriteUint64(w, v) },
		DecodeValue: func(r io.Reader) (uint64, error) { return codec.ReadUint64(r) },
	}
}

func collectValues(m *Map[uint64]) ([]uint64, error) {
	it, err := m.Iter()
	if err != nil {
		return nil, err
	}
	var out []uint64
	for {
		v, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// TestSplitAndCollapse walks the exact split-then-collapse sequence: two
// keys sharing a byte of prefix force an edge split; removing them both
// restores the empty state.
func TestSplitAndCollapse(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	_, had, err := m.Insert([]byte{0x00, 0x00}, 0)
	require.NoError(t, err)
	require.False(t, had)
	_, had, err = m.Insert([]byte{0x00, 0x10}, 8)
	require.NoError(t, err)
	require.False(t, had)

	v, ok, err := m.Get([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, v)
	v, ok, err = m.Get([]byte{0x00, 0x10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 8, v)

	removed, ok, err := m.Remove([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, removed)

	_, ok, err = m.Get([]byte{0x00, 0x00})
	require.NoError(t, err)
	require.False(t, ok)
	v, ok, err = m.Get([]byte{0x00, 0x10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 8, v)

	_, ok, err = m.Remove([]byte{0x00, 0x10})
	require.NoError(t, err)
	require.True(t, ok)

	count, err := m.Count()
	require.NoError(t, err)
	require.Zero(t, count)

	node, err := m.root.Node(s, m.ops)
	require.NoError(t, err)
	for i := range node.children {
		require.True(t, node.children[i].IsEmpty())
	}
}

// TestPrefixKeys covers a key that is a strict prefix of another: the
// shorter one lives in a terminal slot below the shared edge.
func TestPrefixKeys(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	_, _, err := m.Insert([]byte("a"), 1)
	require.NoError(t, err)
	_, _, err = m.Insert([]byte("ab"), 2)
	require.NoError(t, err)
	_, _, err = m.Insert([]byte("abc"), 3)
	require.NoError(t, err)

	for i, key := range [][]byte{[]byte("a"), []byte("ab"), []byte("abc")} {
		v, ok, err := m.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, i+1, v)
	}

	_, ok, err := m.Get([]byte("abcd"))
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = m.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok)

	removed, ok, err := m.Remove([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, removed)

	v, ok, err := m.Get([]byte("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, v)
	v, ok, err = m.Get([]byte("abc"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, v)
}

func TestOverwrite(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	_, had, err := m.Insert([]byte("key"), 1)
	require.NoError(t, err)
	require.False(t, had)

	prev, had, err := m.Insert([]byte("key"), 2)
	require.NoError(t, err)
	require.True(t, had)
	require.EqualValues(t, 1, prev)

	v, ok, err := m.Get([]byte("key"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, v)
}

func TestIterInKeyOrder(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	keys := []string{"zb", "a", "ab", "aa", "z", "m", "aab"}
	for i, k := range keys {
		_, _, err := m.Insert([]byte(k), uint64(i))
		require.NoError(t, err)
	}

	sorted := append([]string{}, keys...)
	sort.Strings(sorted)

	got, err := collectValues(m)
	require.NoError(t, err)
	require.Len(t, got, len(keys))
	for i, k := range sorted {
		var want uint64
		for j, orig := range keys {
			if orig == k {
				want = uint64(j)
			}
		}
		require.Equal(t, want, got[i], "position %d (key %q)", i, k)
	}
}

func TestPersistRestore(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	keys := []string{"", "a", "ab", "abc", "b", "ba", "xyz", "xyzzy"}
	for i, k := range keys {
		_, _, err := m.Insert([]byte(k), uint64(i)*7)
		require.NoError(t, err)
	}

	snap, err := m.Persist()
	require.NoError(t, err)

	restored := New[uint64](s, uint64Codecs())
	restored.root = handle.Persisted[uint64, Node[uint64], Anno](snap)

	count, err := restored.Count()
	require.NoError(t, err)
	require.EqualValues(t, len(keys), count)

	for i, k := range keys {
		v, ok, err := restored.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, uint64(i)*7, v)
	}
}

// TestModel replays a deterministic pseudo-random operation sequence over
// short byte keys against a plain map model.
func TestModel(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())
	model := make(map[string]uint64)

	rng := rand.New(rand.NewSource(7))
	const ops = 3000

	randomKey := func() []byte {
		n := rng.Intn(4)
		key := make([]byte, n)
		for i := range key {
			key[i] = byte(rng.Intn(4)) // few distinct bytes, to force shared prefixes
		}
		return key
	}

	for i := 0; i < ops; i++ {
		key := randomKey()
		switch rng.Intn(4) {
		case 0:
			wantVal, wantOk := model[string(key)]
			gotVal, gotOk, err := m.Remove(key)
			require.NoError(t, err)
			require.Equal(t, wantOk, gotOk, "remove %x", key)
			if wantOk {
				require.Equal(t, wantVal, gotVal)
			}
			delete(model, string(key))
		case 1:
			want, wantOk := model[string(key)]
			ref, ok, err := m.GetMut(key)
			require.NoError(t, err)
			require.Equal(t, wantOk, ok, "getmut %x", key)
			if ok {
				require.Equal(t, want, *ref.Value())
				*ref.Value() = want + 1
				ref.Close()
				model[string(key)] = want + 1
			}
		default:
			val := rng.Uint64()
			_, _, err := m.Insert(key, val)
			require.NoError(t, err)
			model[string(key)] = val
		}
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, len(model), count)

	for key, want := range model {
		got, ok, err := m.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, ok, "get %x", key)
		require.Equal(t, want, got)
	}
}

func TestEmptyAfterRemovingEverything(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	keys := []string{"", "a", "ab", "abc", "abd", "b", "xyz"}
	for i, k := range keys {
		_, _, err := m.Insert([]byte(k), uint64(i))
		require.NoError(t, err)
	}
	for _, k := range keys {
		_, ok, err := m.Remove([]byte(k))
		require.NoError(t, err)
		require.True(t, ok, "remove %q", k)
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.Zero(t, count)

	node, err := m.root.Node(s, m.ops)
	require.NoError(t, err)
	for i := range node.children {
		require.True(t, node.children[i].IsEmpty())
	}
}

func TestGetMutUpdatesInPlace(t *testing.T) {
	s := store.Volatile()
	m := New[uint64](s, uint64Codecs())

	for i, k := range []string{"a", "ab", "abc", "b"} {
		_, _, err := m.Insert([]byte(k), uint64(i))
		require.NoError(t, err)
	}
	_, err := m.Persist()
	require.NoError(t, err)

	// The cursor promotes the persisted path back to owned.
	ref, ok, err := m.GetMut([]byte("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, *ref.Value())
	*ref.Value() = 77
	ref.Close()

	v, ok, err := m.Get([]byte("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 77, v)

	for i, k := range []string{"a", "abc", "b"} {
		want := []uint64{0, 2, 3}[i]
		v, ok, err := m.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, v, "key %q", k)
	}

	_, ok, err = m.GetMut([]byte("zz"))
	require.NoError(t, err)
	require.False(t, ok)
}
