// Package codec defines the serialization contract every leaf, annotation,
// and handle in the tree engine implements, plus the engine-defined wire
// layouts for the handful of primitive shapes the engine itself needs to
// encode (options, sequences, tuples, strings, integers): plain
// io.Writer/io.Reader helpers that report every failure as a returned
// error.
package codec

import (
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/xerrors"
)

// ErrMalformed is returned when a Restore call meets a tag or field value
// it cannot interpret (an unknown option or handle-slot tag, an
// out-of-range radix edge offset). A truncated stream is not reported as
// ErrMalformed: the read helpers return the underlying io error
// (io.EOF or io.ErrUnexpectedEOF), wrapped.
var ErrMalformed = xerrors.New("codec: malformed input")

// Codec is implemented by every value the engine persists: leaves,
// annotations, and (indirectly, via Handle) compound nodes.
type Codec interface {
	// Persist writes the value's bytes to w. The layout is value-defined.
	Persist(w io.Writer) error
}

// Decoder reconstructs a T from bytes previously written by a Codec.
// It is a function rather than a method because Go has no way to
// express "static Restore" on an interface: the zero value doesn't
// exist yet when restoring.
type Decoder[T any] func(r io.Reader) (T, error)

// WriteOption writes the presence tag and, if present, v's bytes.
func WriteOption[T Codec](w io.Writer, v *T) error {
	if v == nil {
		_, err := w.Write([]byte{0})
		return err
	}
	if _, err := w.Write([]byte{1}); err != nil {
		return err
	}
	return (*v).Persist(w)
}

// ReadOption reads an option previously written by WriteOption.
func ReadOption[T any](r io.Reader, decode Decoder[T]) (*T, error) {
	tag, err := ReadByte(r)
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		v, err := decode(r)
		if err != nil {
			return nil, err
		}
		return &v, nil
	default:
		return nil, xerrors.Errorf("option tag %d: %w", tag, ErrMalformed)
	}
}

// WriteSequence writes a big-endian uint64 length followed by each
// element's bytes.
func WriteSequence[T Codec](w io.Writer, elems []T) error {
	if err := WriteUint64(w, uint64(len(elems))); err != nil {
		return err
	}
	for i := range elems {
		if err := elems[i].Persist(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadSequence reads a sequence previously written by WriteSequence.
func ReadSequence[T any](r io.Reader, decode Decoder[T]) ([]T, error) {
	n, err := ReadUint64(r)
	if err != nil {
		return nil, err
	}
	elems := make([]T, n)
	for i := range elems {
		v, err := decode(r)
		if err != nil {
			return nil, err
		}
		elems[i] = v
	}
	return elems, nil
}

// WriteBytes writes a big-endian uint64 length followed by the raw bytes.
func WriteBytes(w io.Writer, data []byte) error {
	if err := WriteUint64(w, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// ReadBytes reads a byte slice previously written by WriteBytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint64(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, xerrors.Errorf("reading %d bytes: %w", n, err)
	}
	return buf, nil
}

// WriteString writes a big-endian uint64 byte-length followed by the
// UTF-8 bytes of s.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads a string previously written by WriteString.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func WriteByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func ReadByte(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("reading byte: %w", err)
	}
	return buf[0], nil
}

func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("reading uint16: %w", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("reading uint32: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("reading uint64: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func WriteInt64(w io.Writer, v int64) error {
	return WriteUint64(w, uint64(v))
}

func ReadInt64(r io.Reader) (int64, error) {
	v, err := ReadUint64(r)
	return int64(v), err
}

// WriteVarint writes n as an unsigned LEB128 value, used by the radix
// collection to encode edge offsets and nibble lengths compactly.
func WriteVarint(w io.Writer, n uint64) error {
	var buf [binary.MaxVarintLen64]byte
	sz := binary.PutUvarint(buf[:], n)
	_, err := w.Write(buf[:sz])
	return err
}

// ReadVarint reads a value written by WriteVarint from a byte-at-a-time
// reader. r must support single-byte reads (io.ByteReader) or this wraps
// it in a bufio-free one-byte-at-a-time reader.
func ReadVarint(r io.Reader) (uint64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r}
	}
	v, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, xerrors.Errorf("reading varint: %w", err)
	}
	return v, nil
}

type byteReader struct{ r io.Reader }

func (b *byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	_, err := io.ReadFull(b.r, buf[:])
	return buf[0], err
}

// MaxUint16 re-exports math.MaxUint16. None of the encodings in this
// package use it; radix edge offsets and lengths are written as varints.
const MaxUint16 = math.MaxUint16
