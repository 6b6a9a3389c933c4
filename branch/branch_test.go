package branch

import (
	"io"
	"testing"

	"github.com/iotaledger/kelvin/compound"
	"github.com/iotaledger/kelvin/handle"
	"github.com/iotaledger/kelvin/store"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

// pairNode is a minimal two-slot compound for exercising cursors without
// dragging in a full collection. Leaves are uint64, annotated by their
// sum.
type pairNode struct {
	slots [2]handle.Handle[uint64, pairNode, uint64]
}

func (n *pairNode) Arity() int { return 2 }

func (n *pairNode) ChildAt(i int) *handle.Handle[uint64, pairNode, uint64] {
	return &n.slots[i]
}

func pairOps(s *store.Store) handle.Ops[uint64, pairNode, uint64] {
	var ops handle.Ops[uint64, pairNode, uint64]
	ops = handle.Ops[uint64, pairNode, uint64]{
		DecodeNode: func(io.Reader) (pairNode, error) {
			return pairNode{}, xerrors.New("in-memory fixture is never persisted")
		},
		CloneNode: func(n pairNode) pairNode { return n },
		Inject:    func(l uint64) uint64 { return l },
		Annotate: func(n pairNode) uint64 {
			var total uint64
			for i := range n.slots {
				a, err := n.slots[i].Annotation(s, ops)
				if err == nil && a != nil {
					total += *a
				}
			}
			return total
		},
	}
	return ops
}

func asPairCompound(n *pairNode) compound.Compound[uint64, pairNode, uint64] { return n }

// buildFixture returns a handle over ((1, 2), 3).
func buildFixture() handle.Handle[uint64, pairNode, uint64] {
	var inner pairNode
	inner.slots[0] = handle.Leaf[uint64, pairNode, uint64](1)
	inner.slots[1] = handle.Leaf[uint64, pairNode, uint64](2)

	var root pairNode
	root.slots[0] = handle.Owned[uint64, pairNode, uint64](inner)
	root.slots[1] = handle.Leaf[uint64, pairNode, uint64](3)
	return handle.Owned[uint64, pairNode, uint64](root)
}

func TestSeekLeafWalksInOrder(t *testing.T) {
	s := store.Volatile()
	ops := pairOps(s)
	root := buildFixture()

	b, err := New(&root, s, ops, asPairCompound)
	require.NoError(t, err)

	var got []uint64
	for {
		v, ok, err := b.SeekLeaf()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
		b.Advance()
	}
	require.Equal(t, []uint64{1, 2, 3}, got)
}

func TestDescendRejectsLeafSlot(t *testing.T) {
	s := store.Volatile()
	ops := pairOps(s)
	root := buildFixture()

	b, err := New(&root, s, ops, asPairCompound)
	require.NoError(t, err)
	require.Error(t, b.Descend(1))
}

func TestBranchMutRepairsAnnotations(t *testing.T) {
	s := store.Volatile()
	ops := pairOps(s)
	root := buildFixture()

	a, err := root.Annotation(s, ops)
	require.NoError(t, err)
	require.EqualValues(t, 6, *a)

	b, err := NewMut(&root, s, ops, asPairCompound)
	require.NoError(t, err)
	require.NoError(t, b.Descend(0))
	lp, err := b.ChildHandle(0).LeafValueMut()
	require.NoError(t, err)
	*lp = 10
	b.Close()

	a, err = root.Annotation(s, ops)
	require.NoError(t, err)
	require.EqualValues(t, 15, *a)
}

func TestBranchMutCloseIsIdempotent(t *testing.T) {
	s := store.Volatile()
	ops := pairOps(s)
	root := buildFixture()

	b, err := NewMut(&root, s, ops, asPairCompound)
	require.NoError(t, err)
	b.Close()
	b.Close()
}
