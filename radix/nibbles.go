package radix

import (
	"io"

	"github.com/iotaledger/kelvin/codec"
	"golang.org/x/xerrors"
)

// Nibbles is a read-only view over a run of 4-bit nibbles inside a byte
// slice, delimited by front/back offsets counted in nibbles from the
// start of the slice. The high nibble of each byte comes first.
type Nibbles struct {
	bytes []byte
	front int
	back  int
}

// NewNibbles views the whole of key, two nibbles per byte.
func NewNibbles(key []byte) Nibbles {
	return Nibbles{bytes: key, back: len(key) * 2}
}

// Len returns the number of nibbles remaining in the view.
func (n Nibbles) Len() int { return n.back - n.front }

// Get returns the idx'th nibble of the view.
func (n Nibbles) Get(idx int) byte {
	b := n.bytes[(n.front+idx)/2]
	if (n.front+idx)%2 == 0 {
		return b >> 4
	}
	return b & 0x0f
}

// PopNibble removes and returns the first nibble.
func (n *Nibbles) PopNibble() byte {
	v := n.Get(0)
	n.front++
	return v
}

// TrimFront drops the first by nibbles from the view.
func (n *Nibbles) TrimFront(by int) {
	n.front += by
}

// TrimBack drops the last by nibbles from the view.
func (n *Nibbles) TrimBack(by int) {
	n.back -= by
}

// CommonPrefixLen returns the number of leading nibbles n and other share.
func (n Nibbles) CommonPrefixLen(other Nibbles) int {
	min := n.Len()
	if other.Len() < min {
		min = other.Len()
	}
	for i := 0; i < min; i++ {
		if n.Get(i) != other.Get(i) {
			return i
		}
	}
	return min
}

// NibbleBuf is an owned nibble run: the per-edge prefixes stored inside
// radix nodes. The zero value is the empty run.
type NibbleBuf struct {
	bytes []byte
	front int
	back  int
}

// View returns a read-only Nibbles over the buffer's contents.
func (b *NibbleBuf) View() Nibbles {
	return Nibbles{bytes: b.bytes, front: b.front, back: b.back}
}

// Len returns the number of nibbles in the buffer.
func (b *NibbleBuf) Len() int { return b.back - b.front }

// Push appends one nibble.
func (b *NibbleBuf) Push(nib byte) {
	if b.back%2 == 0 {
		b.bytes = append(b.bytes, nib<<4)
	} else {
		b.bytes[b.back/2] |= nib & 0x0f
	}
	b.back++
}

// Append appends every nibble of v.
func (b *NibbleBuf) Append(v Nibbles) {
	for i := 0; i < v.Len(); i++ {
		b.Push(v.Get(i))
	}
}

// BufFrom copies a view into a fresh, front-aligned buffer.
func BufFrom(v Nibbles) NibbleBuf {
	var b NibbleBuf
	b.bytes = make([]byte, 0, (v.Len()+1)/2)
	b.Append(v)
	return b
}

// clone deep-copies the buffer so copy-on-write node clones never share
// backing storage with the edges they were cloned from.
func (b *NibbleBuf) clone() NibbleBuf {
	out := NibbleBuf{front: b.front, back: b.back}
	out.bytes = make([]byte, len(b.bytes))
	copy(out.bytes, b.bytes)
	return out
}

// Equal reports nibble-wise equality.
func (b *NibbleBuf) Equal(other *NibbleBuf) bool {
	v, w := b.View(), other.View()
	if v.Len() != w.Len() {
		return false
	}
	return v.CommonPrefixLen(w) == v.Len()
}

// persist writes the canonical edge encoding: a varint front offset
// (always 0 or 1 once whole leading bytes are trimmed), a varint nibble
// length, then ceil((offset+length)/2) bytes.
func (b *NibbleBuf) persist(w io.Writer) error {
	start := b.front / 2
	off := b.front - start*2
	length := b.Len()
	if err := codec.WriteVarint(w, uint64(off)); err != nil {
		return err
	}
	if err := codec.WriteVarint(w, uint64(length)); err != nil {
		return err
	}
	end := start + (off+length+1)/2
	_, err := w.Write(b.bytes[start:end])
	return err
}

func restoreNibbleBuf(r io.Reader) (NibbleBuf, error) {
	off, err := codec.ReadVarint(r)
	if err != nil {
		return NibbleBuf{}, err
	}
	if off > 1 {
		return NibbleBuf{}, xerrors.Errorf("radix: edge offset %d: %w", off, codec.ErrMalformed)
	}
	length, err := codec.ReadVarint(r)
	if err != nil {
		return NibbleBuf{}, err
	}
	byteLen := (off + length + 1) / 2
	buf := make([]byte, byteLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return NibbleBuf{}, xerrors.Errorf("radix: reading edge bytes: %w", err)
	}
	return NibbleBuf{bytes: buf, front: int(off), back: int(off + length)}, nil
}
