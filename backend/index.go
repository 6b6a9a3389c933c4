package backend

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/iotaledger/kelvin/digest"
	"golang.org/x/xerrors"
)

// index is the digest→offset index for File, kept as an append-only log on
// disk (one fixed-width record per entry: digest bytes, then an 8-byte
// big-endian offset) and mirrored in memory for lookups. The log is
// replayed in full on open; duplicate records keep the last offset.
type index struct {
	mu     sync.RWMutex
	path   string
	file   *os.File
	lookup map[digest.Digest]int64
}

const indexRecordSize = digest.Size + 8

func openIndex(dir string) (*index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("creating index dir: %w", err)
	}
	path := dir + "/log"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, xerrors.Errorf("opening index log: %w", err)
	}
	idx := &index{path: path, file: f, lookup: make(map[digest.Digest]int64)}
	if err := idx.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *index) replay() error {
	r, err := os.Open(idx.path)
	if err != nil {
		return xerrors.Errorf("reopening index log for replay: %w", err)
	}
	defer r.Close()

	buf := bufio.NewReader(r)
	record := make([]byte, indexRecordSize)
	for {
		if _, err := io.ReadFull(buf, record); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return xerrors.Errorf("replaying index log: %w", err)
		}
		var d digest.Digest
		copy(d[:], record[:digest.Size])
		offset := int64(binary.BigEndian.Uint64(record[digest.Size:]))
		idx.lookup[d] = offset
	}
}

// get returns the data-file offset stored for d, and whether it was found.
func (idx *index) get(d digest.Digest) (int64, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	off, ok := idx.lookup[d]
	return off, ok
}

// insert records d → offset if d is new. Returns true if d was already
// present (a no-op in that case).
func (idx *index) insert(d digest.Digest, offset int64) (alreadyPresent bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.lookup[d]; ok {
		return true, nil
	}
	record := make([]byte, indexRecordSize)
	copy(record[:digest.Size], d[:])
	binary.BigEndian.PutUint64(record[digest.Size:], uint64(offset))
	if _, err := idx.file.Write(record); err != nil {
		return false, xerrors.Errorf("appending index record: %w", err)
	}
	idx.lookup[d] = offset
	return false, nil
}

func (idx *index) flush() error {
	return idx.file.Sync()
}

func (idx *index) onDiskSize() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return int64(len(idx.lookup)) * indexRecordSize
}

func (idx *index) close() error {
	return idx.file.Close()
}
