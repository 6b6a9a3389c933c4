package backend

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/iotaledger/kelvin/digest"
	"golang.org/x/xerrors"
)

// File is the disk Backend: an index/ subdirectory holding the
// digest→offset index, and a data file that is an append-only
// concatenation of entries. Each data entry is itself length-prefixed (an
// 8-byte big-endian byte count) so Get can bound its read without
// consulting the index for anything but the starting offset.
type File struct {
	mu         sync.Mutex
	dir        string
	idx        *index
	data       *os.File
	dataPath   string
	dataOffset int64
}

// NewFile opens (creating if necessary) a File backend rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Errorf("creating backend dir: %w", err)
	}
	idx, err := openIndex(filepath.Join(dir, "index"))
	if err != nil {
		return nil, err
	}
	dataPath := filepath.Join(dir, "data")
	data, err := os.OpenFile(dataPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		_ = idx.close()
		return nil, xerrors.Errorf("opening data file: %w", err)
	}
	info, err := data.Stat()
	if err != nil {
		_ = idx.close()
		_ = data.Close()
		return nil, xerrors.Errorf("stat-ing data file: %w", err)
	}
	return &File{
		dir:        dir,
		idx:        idx,
		data:       data,
		dataPath:   dataPath,
		dataOffset: info.Size(),
	}, nil
}

func (f *File) Get(d digest.Digest) (io.ReadCloser, error) {
	offset, ok := f.idx.get(d)
	if !ok {
		return nil, ErrNotFound
	}
	// A fresh *os.File handle keeps Get safe to call concurrently with
	// Put, which only ever appends past the current read's region.
	reader, err := os.Open(f.dataPath)
	if err != nil {
		return nil, xerrors.Errorf("opening data file for read: %w", err)
	}
	if _, err := reader.Seek(offset, io.SeekStart); err != nil {
		_ = reader.Close()
		return nil, xerrors.Errorf("seeking to entry: %w", err)
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
		_ = reader.Close()
		return nil, xerrors.Errorf("reading entry length: %w", err)
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		_ = reader.Close()
		return nil, xerrors.Errorf("reading entry body: %w", err)
	}
	_ = reader.Close()
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (f *File) Put(d digest.Digest, data []byte) (PutResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	already, err := f.idx.insert(d, f.dataOffset)
	if err != nil {
		return Ok, err
	}
	if already {
		return AlreadyThere, nil
	}

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	if _, err := f.data.WriteAt(lenBuf[:], f.dataOffset); err != nil {
		return Ok, xerrors.Errorf("writing entry length: %w", err)
	}
	if _, err := f.data.WriteAt(data, f.dataOffset+int64(len(lenBuf))); err != nil {
		return Ok, xerrors.Errorf("writing entry body: %w", err)
	}
	f.dataOffset += int64(len(lenBuf)) + int64(len(data))
	return Ok, nil
}

func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.data.Sync(); err != nil {
		return xerrors.Errorf("syncing data file: %w", err)
	}
	return f.idx.flush()
}

func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idx.onDiskSize() + f.dataOffset
}

// Close releases the backend's open file handles.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.data.Close(); err != nil {
		return err
	}
	return f.idx.close()
}
