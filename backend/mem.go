package backend

import (
	"bytes"
	"io"
	"sync"

	"github.com/iotaledger/kelvin/digest"
)

// Mem is an in-memory Backend. Flush is a no-op; bytes live as long as the
// process does.
type Mem struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte
}

// NewMem creates an empty in-memory Backend.
func NewMem() *Mem {
	return &Mem{data: make(map[digest.Digest][]byte)}
}

func (m *Mem) Get(d digest.Digest) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[d]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Mem) Put(d digest.Digest, data []byte) (PutResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[d]; ok {
		return AlreadyThere, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[d] = cp
	return Ok, nil
}

func (m *Mem) Flush() error { return nil }

func (m *Mem) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, b := range m.data {
		n += int64(len(b))
	}
	return n
}
