package list

import (
	"io"
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

func collect(l *List[uint64]) ([]uint64, error) {
	it, err := l.Iter()
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

func TestPushPopLIFO(t *testing.T) {
	s := store.Volatile()
	l := New[uint64](s, uint64Codecs())

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, l.Push(i))
	}

	count, err := l.Count()
	require.NoError(t, err)
	require.EqualValues(t, 10, count)

	for i := uint64(10); i > 0; i-- {
		v, ok, err := l.Pop()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i-1, v)
	}

	_, ok, err := l.Pop()
	require.NoError(t, err)
	require.False(t, ok)

	count, err = l.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestFirst(t *testing.T) {
	s := store.Volatile()
	l := New[uint64](s, uint64Codecs())

	_, ok, err := l.First()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Push(7))
	require.NoError(t, l.Push(8))

	v, ok, err := l.First()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 8, v)
}

func TestNthAgainstIter(t *testing.T) {
	s := store.Volatile()
	l := New[uint64](s, uint64Codecs())

	const n = 100
	for i := uint64(0); i < n; i++ {
		require.NoError(t, l.Push(i))
	}

	byIter, err := collect(l)
	require.NoError(t, err)
	require.Len(t, byIter, n)

	for i := uint64(0); i < n; i++ {
		v, ok, err := l.Nth(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, byIter[i], v)
	}

	_, ok, err := l.Nth(n)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPersistRestore(t *testing.T) {
	s := store.Volatile()
	l := New[uint64](s, uint64Codecs())

	const n = 50
	for i := uint64(0); i < n; i++ {
		require.NoError(t, l.Push(i))
	}

	snap, err := l.Persist()
	require.NoError(t, err)

	restored := New[uint64](s, uint64Codecs())
	restored.root = handle.Persisted[uint64, Node[uint64], Anno](snap)

	count, err := restored.Count()
	require.NoError(t, err)
	require.EqualValues(t, n, count)

	got, err := collect(restored)
	require.NoError(t, err)
	for i := uint64(0); i < n; i++ {
		require.Equal(t, n-1-i, got[i])
	}

	// Popping a restored list keeps working: cells promote back to owned
	// on demand.
	v, ok, err := restored.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, n-1, v)
}

func TestTailSharing(t *testing.T) {
	s := store.Volatile()
	l := New[uint64](s, uint64Codecs())
	require.NoError(t, l.Push(1))
	require.NoError(t, l.Push(2))

	snapA, err := l.Persist()
	require.NoError(t, err)

	// Pushing on top of a persisted list shares the whole persisted
	// tail; re-persisting stores only the new cell.
	require.NoError(t, l.Push(3))
	snapB, err := l.Persist()
	require.NoError(t, err)
	require.NotEqual(t, snapA.Digest, snapB.Digest)

	got, err := collect(l)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 2, 1}, got)
}
