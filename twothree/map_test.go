package twothree

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

type key32 uint32

func (k key32) Compare(other key32) int {
	switch {
	case k < other:
		return -1
	case k > other:
		return 1
	default:
		return 0
	}
}

func key32Codecs() Codecs[key32, uint64] {
	return Codecs[key32, uint64]{
		EncodeKey: func(w io.Writer, k key32) error { return codec.WriteUint32(w, uint32(k)) },
		DecodeKey: func(r io.Reader) (key32, error) {
			v, err := codec.ReadUint32(r)
			return key32(v), err
		},
		EncodeValue: func(w io.Writer, v uint64) error { return codec.WriteUint64(w, v) },
		DecodeValue: func(r io.Reader) (uint64, error) { return codec.ReadUint64(r) },
	}
}

func collectPairs(m *Map[key32, uint64]) ([]KV[key32, uint64], error) {
	it, err := m.Iter()
	if err != nil {
		return nil, err
	}
	var out []KV[key32, uint64]
	for {
		kv, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, kv)
	}
}

// TestReverseInsertIterAscending inserts keys in strictly descending
// order and expects iteration in natural ascending order regardless.
func TestReverseInsertIterAscending(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	const n = 1024
	for i := n; i > 0; i-- {
		k := key32(i - 1)
		_, had, err := m.Insert(k, uint64(i-1))
		require.NoError(t, err)
		require.False(t, had)
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	for i := uint32(0); i < n; i++ {
		v, ok, err := m.Get(key32(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, i, v)
	}

	pairs, err := collectPairs(m)
	require.NoError(t, err)
	require.Len(t, pairs, n)
	for i, kv := range pairs {
		require.EqualValues(t, i, kv.Key)
		require.EqualValues(t, i, kv.Value)
	}
}

func TestNthAgainstIter(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	const n = 1024
	for i := uint32(0); i < n; i++ {
		_, _, err := m.Insert(key32(i), uint64(i))
		require.NoError(t, err)
	}

	byIter, err := collectPairs(m)
	require.NoError(t, err)
	require.Len(t, byIter, n)

	for i := uint64(0); i < n; i++ {
		kv, ok, err := m.Nth(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, byIter[i], kv)
	}

	_, ok, err := m.Nth(n)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertOverwriteAndRemove(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	_, had, err := m.Insert(5, 50)
	require.NoError(t, err)
	require.False(t, had)

	prev, had, err := m.Insert(5, 51)
	require.NoError(t, err)
	require.True(t, had)
	require.EqualValues(t, 50, prev)

	removed, ok, err := m.Remove(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 51, removed)

	_, ok, err = m.Get(5)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = m.Remove(5)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPersistRestore(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	const n = 300
	for i := uint32(0); i < n; i++ {
		_, _, err := m.Insert(key32(i), uint64(i)*3)
		require.NoError(t, err)
	}

	snap, err := m.Persist()
	require.NoError(t, err)

	restored := New[key32, uint64](s, key32Codecs())
	restored.root = handle.Persisted[KV[key32, uint64], Node[key32, uint64], Anno[key32]](snap)

	count, err := restored.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	for i := uint32(0); i < n; i++ {
		v, ok, err := restored.Get(key32(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, uint64(i)*3, v)
	}

	pairs, err := collectPairs(restored)
	require.NoError(t, err)
	require.Len(t, pairs, n)
	require.True(t, sort.SliceIsSorted(pairs, func(a, b int) bool {
		return pairs[a].Key < pairs[b].Key
	}))
}

// TestModel replays a deterministic pseudo-random operation sequence
// against an in-memory ordered-map model.
func TestModel(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())
	model := make(map[key32]uint64)

	rng := rand.New(rand.NewSource(99))
	const ops = 4000
	const keySpace = 300

	for i := 0; i < ops; i++ {
		key := key32(rng.Intn(keySpace))
		switch rng.Intn(4) {
		case 0:
			wantVal, wantOk := model[key]
			gotVal, gotOk, err := m.Remove(key)
			require.NoError(t, err)
			require.Equal(t, wantOk, gotOk)
			if wantOk {
				require.Equal(t, wantVal, gotVal)
			}
			delete(model, key)
		case 1:
			want, wantOk := model[key]
			ref, ok, err := m.GetMut(key)
			require.NoError(t, err)
			require.Equal(t, wantOk, ok)
			if ok {
				require.Equal(t, want, *ref.Value())
				*ref.Value() = want + 1
				ref.Close()
				model[key] = want + 1
			}
		default:
			val := rng.Uint64()
			_, _, err := m.Insert(key, val)
			require.NoError(t, err)
			model[key] = val
		}
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, len(model), count)

	wantKeys := make([]key32, 0, len(model))
	for k := range model {
		wantKeys = append(wantKeys, k)
	}
	sort.Slice(wantKeys, func(a, b int) bool { return wantKeys[a] < wantKeys[b] })

	pairs, err := collectPairs(m)
	require.NoError(t, err)
	require.Len(t, pairs, len(model))
	for i, kv := range pairs {
		require.Equal(t, wantKeys[i], kv.Key)
		require.Equal(t, model[kv.Key], kv.Value)
	}
}

func TestEmptyAfterRemovingEverything(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	keys := []key32{8, 3, 11, 1, 9, 4, 0, 15, 7}
	for _, k := range keys {
		_, _, err := m.Insert(k, uint64(k))
		require.NoError(t, err)
	}
	for _, k := range keys {
		_, ok, err := m.Remove(k)
		require.NoError(t, err)
		require.True(t, ok)
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.Zero(t, count)

	pairs, err := collectPairs(m)
	require.NoError(t, err)
	require.Empty(t, pairs)
}

func TestKeysValuesProjections(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	for i := uint32(0); i < 64; i++ {
		_, _, err := m.Insert(key32(i), uint64(i)*2)
		require.NoError(t, err)
	}

	keys, err := m.Keys()
	require.NoError(t, err)
	values, err := m.Values()
	require.NoError(t, err)
	require.Len(t, keys, 64)
	require.Len(t, values, 64)
	for i := range keys {
		require.EqualValues(t, i, keys[i])
		require.EqualValues(t, uint64(i)*2, values[i])
	}
}

func TestGetMutUpdatesInPlace(t *testing.T) {
	s := store.Volatile()
	m := New[key32, uint64](s, key32Codecs())

	for i := uint32(0); i < 100; i++ {
		_, _, err := m.Insert(key32(i), uint64(i))
		require.NoError(t, err)
	}
	_, err := m.Persist()
	require.NoError(t, err)

	// The cursor promotes the persisted path back to owned.
	ref, ok, err := m.GetMut(17)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 17, *ref.Value())
	*ref.Value() = 1717
	ref.Close()

	v, ok, err := m.Get(17)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1717, v)

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, 100, count)

	_, ok, err = m.GetMut(500)
	require.NoError(t, err)
	require.False(t, ok)
}
