package hamt

import (
	"encoding/binary"
	"io"
	"math/rand"
	"testing"

	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
	"github.com/stretchr/testify/require"
)

func uint64Codecs() Codecs[uint64, uint64] {
	return Codecs[uint64, uint64]{
		EncodeKey:   writeUint64,
		DecodeKey:   readUint64,
		EncodeValue: writeUint64,
		DecodeValue: readUint64,
		HashKey:     func(k uint64) uint64 { return mix64(k) },
	}
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// mix64 is splitmix64, used only to spread sequential test keys across
// hash slots the way a real key's content hash would.
func mix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

func TestMapInsertGetRoundTrip(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())

	const n = 1000
	for i := uint64(0); i < n; i++ {
		_, had, err := m.Insert(i, i*2)
		require.NoError(t, err)
		require.False(t, had)
	}

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	for i := uint64(0); i < n; i++ {
		v, ok, err := m.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i*2, v)
	}

	_, ok, err := m.Get(n + 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMapPersistRestore(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())

	const n = 500
	for i := uint64(0); i < n; i++ {
		_, _, err := m.Insert(i, i+1)
		require.NoError(t, err)
	}

	snap, err := m.Persist()
	require.NoError(t, err)

	restored := New[uint64, uint64](s, uint64Codecs())
	restored.root = handle.Persisted[KV[uint64, uint64], Node[uint64, uint64], Anno](snap)

	count, err := restored.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	for i := uint64(0); i < n; i++ {
		v, ok, err := restored.Get(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i+1, v)
	}
}

func TestMapInsertOverwriteAndRemove(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())

	_, had, err := m.Insert(7, 100)
	require.NoError(t, err)
	require.False(t, had)

	prev, had, err := m.Insert(7, 200)
	require.NoError(t, err)
	require.True(t, had)
	require.EqualValues(t, 100, prev)

	v, ok, err := m.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 200, v)

	removed, ok, err := m.Remove(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 200, removed)

	_, ok, err = m.Get(7)
	require.NoError(t, err)
	require.False(t, ok)

	count, err := m.Count()
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

// TestMapModel checks the map against a plain Go map under a deterministic
// pseudo-random sequence of inserts and removes.
func TestMapModel(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())
	model := make(map[uint64]uint64)

	rng := rand.New(rand.NewSource(42))
	const ops = 4000
	const keySpace = 300

	for i := 0; i < ops; i++ {
		key := uint64(rng.Intn(keySpace))
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

	for key, want := range model {
		got, ok, err := m.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	leaves, err := collectLeaves(m)
	require.NoError(t, err)
	require.Equal(t, len(model), len(leaves))
	for _, kv := range leaves {
		want, ok := model[kv.Key]
		require.True(t, ok)
		require.Equal(t, want, kv.Value)
	}
}

func collectLeaves(m *Map[uint64, uint64]) ([]KV[uint64, uint64], error) {
	it, err := m.Iter()
	if err != nil {
		return nil, err
	}
	var out []KV[uint64, uint64]
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

// TestNthAgainstIter checks rank-indexed access agrees with iteration
// order, leaf for leaf.
func TestNthAgainstIter(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())

	const n = 1024
	for i := uint64(0); i < n; i++ {
		_, _, err := m.Insert(i, i)
		require.NoError(t, err)
	}

	byIter, err := collectLeaves(m)
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

func TestKeysValuesProjections(t *testing.T) {
	s := store.Volatile()
	m := New[uint64, uint64](s, uint64Codecs())

	const n = 128
	for i := uint64(0); i < n; i++ {
		_, _, err := m.Insert(i, i+1)
		require.NoError(t, err)
	}

	keys, err := m.Keys()
	require.NoError(t, err)
	values, err := m.Values()
	require.NoError(t, err)
	require.Len(t, keys, n)
	require.Len(t, values, n)
	for i := range keys {
		require.Equal(t, keys[i]+1, values[i])
	}
}

// TestGetMutMatchesFreshTraversal checks that a mutation applied through
// a cursor over a persisted tree leaves the tree byte-identical, after
// persisting, to one where the same mutation was done by a plain insert
// through a fresh traversal.
func TestGetMutMatchesFreshTraversal(t *testing.T) {
	s := store.Volatile()
	a := New[uint64, uint64](s, uint64Codecs())
	b := New[uint64, uint64](s, uint64Codecs())

	const n = 128
	for i := uint64(0); i < n; i++ {
		_, _, err := a.Insert(i, i)
		require.NoError(t, err)
		_, _, err = b.Insert(i, i)
		require.NoError(t, err)
	}

	snapA, err := a.Persist()
	require.NoError(t, err)
	snapB, err := b.Persist()
	require.NoError(t, err)
	require.Equal(t, snapA.Digest, snapB.Digest)

	// GetMut promotes the persisted path back to owned before handing
	// out the reference.
	ref, ok, err := a.GetMut(42)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 42, *ref.Value())
	*ref.Value() = 9001
	ref.Close()

	_, had, err := b.Insert(42, 9001)
	require.NoError(t, err)
	require.True(t, had)

	snapA2, err := a.Persist()
	require.NoError(t, err)
	snapB2, err := b.Persist()
	require.NoError(t, err)
	require.Equal(t, snapA2.Digest, snapB2.Digest)
	require.NotEqual(t, snapA.Digest, snapA2.Digest)

	v, ok, err := a.Get(42)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 9001, v)

	_, ok, err = a.GetMut(n + 50)
	require.NoError(t, err)
	require.False(t, ok)
}
