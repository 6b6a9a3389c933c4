package hamt

import (
	"bytes"
	"io"

	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/digest"
	"github.com/iotaledger/kelvin/proof"
	"golang.org/x/xerrors"
)

// Prove builds a membership proof for key against the map's last
// persisted state, the digest Persist returned. The whole tree must be
// persisted at the root, since the proof is assembled from stored node
// bytes. Returns ok=false without error if key is absent.
func (m *Map[K, V]) Prove(key K) (proof.Proof, bool, error) {
	snap, ok := m.root.Snapshot()
	if !ok {
		return proof.Proof{}, false, xerrors.New("hamt: Prove requires a persisted map")
	}
	var p proof.Proof
	hv := m.codecs.HashKey(key)
	d := snap.Digest
	for depth := 0; ; depth++ {
		raw, err := m.readNodeBytes(d)
		if err != nil {
			return proof.Proof{}, false, err
		}
		slot := calculateSlot(hv, depth)
		prefix, slotBytes, suffix, tag, err := splitSlot(raw, slot, m.codecs)
		if err != nil {
			return proof.Proof{}, false, err
		}
		switch tag {
		case 0:
			return proof.Proof{}, false, nil
		case 1:
			kv, err := m.codecs.restoreLeaf(bytes.NewReader(slotBytes[1:]))
			if err != nil {
				return proof.Proof{}, false, err
			}
			if kv.Key != key {
				return proof.Proof{}, false, nil
			}
			p.Levels = append(p.Levels, proof.Level{Prefix: prefix, Suffix: suffix})
			p.LeafSlot = slotBytes
			return p, true, nil
		default:
			p.Levels = append(p.Levels, proof.Level{Prefix: prefix, Suffix: suffix})
			d = digest.FromBytes(slotBytes[1:])
		}
	}
}

func (m *Map[K, V]) readNodeBytes(d digest.Digest) ([]byte, error) {
	r, err := m.store.GetByDigest(d)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// splitSlot carves one node's wire bytes around the slot'th child:
// everything before its slot bytes, the slot bytes themselves (tag plus
// payload), and everything after. Earlier occupied slots are measured by
// decoding them against the reader, since inline leaves have no length
// prefix. Returns tag 0 if the slot is absent from the presence mask.
func splitSlot[K comparable, V any](raw []byte, slot int, codecs Codecs[K, V]) (prefix, slotBytes, suffix []byte, tag byte, err error) {
	r := bytes.NewReader(raw)
	mask, err := codec.ReadUint16(r)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if mask&(1<<uint(slot)) == 0 {
		return nil, nil, nil, 0, nil
	}
	for i := 0; i < slot; i++ {
		if mask&(1<<uint(i)) == 0 {
			continue
		}
		if err := skipSlot(r, codecs); err != nil {
			return nil, nil, nil, 0, err
		}
	}
	start := len(raw) - r.Len()
	if err := skipSlot(r, codecs); err != nil {
		return nil, nil, nil, 0, err
	}
	end := len(raw) - r.Len()
	return raw[:start], raw[start:end], raw[end:], raw[start], nil
}

func skipSlot[K comparable, V any](r *bytes.Reader, codecs Codecs[K, V]) error {
	tag, err := codec.ReadByte(r)
	if err != nil {
		return err
	}
	switch tag {
	case 1:
		_, err := codecs.restoreLeaf(r)
		return err
	case 2:
		if _, err := r.Seek(int64(digest.Size), io.SeekCurrent); err != nil {
			return err
		}
		return nil
	default:
		return xerrors.Errorf("hamt: slot tag %d: %w", tag, codec.ErrMalformed)
	}
}
