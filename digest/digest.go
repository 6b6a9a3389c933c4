// Package digest defines the content-identity primitive the tree engine is
// built on: an opaque, fixed-length byte digest produced by a streaming
// hash. Hasher is the streaming-hash contract; the package's only
// implementation is blake2b-256, to which New, Of and Size are fixed.
package digest

import (
	"encoding/hex"
	"hash"

	"golang.org/x/crypto/blake2b"
)

// Size is the byte length of a Digest produced by the default hasher.
const Size = blake2b.Size256

// Digest is an opaque content identity. Equality is byte equality.
type Digest [Size]byte

// Zero reports whether d is the all-zero digest (the zero value of
// Digest).
func (d Digest) Zero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the digest as a byte slice; callers must not mutate it.
func (d Digest) Bytes() []byte {
	return d[:]
}

// FromBytes copies raw into a Digest. It panics if raw is not exactly
// Size bytes long, which indicates malformed or truncated input.
func FromBytes(raw []byte) Digest {
	if len(raw) != Size {
		panic("digest: wrong byte length")
	}
	var d Digest
	copy(d[:], raw)
	return d
}

// Hasher is a streaming byte hash that yields a Digest on SumDigest. New
// returns the blake2b-256 implementation, which the Sink (through Of) and
// proof verification use; there is no hook for substituting another
// Hasher, and Size is fixed to blake2b-256's output length.
type Hasher interface {
	hash.Hash
	SumDigest() Digest
}

// New returns a fresh instance of the default streaming hasher (blake2b-256).
func New() Hasher {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on a non-nil key of the wrong size;
		// we never pass a key, so this is unreachable.
		panic(err)
	}
	return &blake2bHasher{h}
}

type blake2bHasher struct {
	hash.Hash
}

func (b *blake2bHasher) SumDigest() Digest {
	return FromBytes(b.Sum(nil))
}

// Of hashes data in one shot and returns its digest.
func Of(data []byte) Digest {
	h := New()
	_, _ = h.Write(data)
	return h.SumDigest()
}
