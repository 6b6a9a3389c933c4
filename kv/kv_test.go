package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type mapStore struct {
	data map[string][]byte
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (m *mapStore) Get(key []byte) []byte { return m.data[string(key)] }

func (m *mapStore) Has(key []byte) bool {
	_, ok := m.data[string(key)]
	return ok
}

func (m *mapStore) Set(key, value []byte) {
	if value == nil {
		delete(m.data, string(key))
		return
	}
	m.data[string(key)] = value
}

func (m *mapStore) Iterate(fun func(k, v []byte) bool) {
	for k, v := range m.data {
		if !fun([]byte(k), v) {
			return
		}
	}
}

func (m *mapStore) IterateKeys(fun func(k []byte) bool) {
	m.Iterate(func(k, _ []byte) bool { return fun(k) })
}

func TestPartitionScopesReads(t *testing.T) {
	s := newMapStore()
	s.Set([]byte{1, 'a'}, []byte("one"))
	s.Set([]byte{2, 'a'}, []byte("two"))

	p1 := Partition(s, []byte{1})
	p2 := Partition(s, []byte{2})
	require.Equal(t, []byte("one"), p1.Get([]byte("a")))
	require.Equal(t, []byte("two"), p2.Get([]byte("a")))
	require.True(t, p1.Has([]byte("a")))
	require.False(t, p1.Has([]byte("b")))
}

func TestPartitionWriterScopesWrites(t *testing.T) {
	s := newMapStore()
	w := PartitionWriter(s, []byte{9})
	w.Set([]byte("key"), []byte("val"))

	require.Equal(t, []byte("val"), s.Get([]byte{9, 'k', 'e', 'y'}))
	require.Nil(t, s.Get([]byte("key")))
}

func TestEmptyPrefixIsPassThrough(t *testing.T) {
	s := newMapStore()
	p := Partition(s, nil)
	s.Set([]byte("k"), []byte("v"))
	require.Equal(t, []byte("v"), p.Get([]byte("k")))
}

func TestCopyAll(t *testing.T) {
	src := newMapStore()
	src.Set([]byte("a"), []byte("1"))
	src.Set([]byte("b"), []byte("2"))

	dst := newMapStore()
	CopyAll(dst, src)
	require.Equal(t, []byte("1"), dst.Get([]byte("a")))
	require.Equal(t, []byte("2"), dst.Get([]byte("b")))
	require.Len(t, dst.data, 2)
}
