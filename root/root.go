// Package root implements the durable root pointer: a single digest
// written atomically (temp file + fsync + rename) so it survives process
// restarts. Same-directory rename is an atomic syscall on every platform
// Go targets, so a crash leaves either the prior or the new pointer,
// never a torn one.
package root

import (
	"os"
	"path/filepath"

	"github.com/iotaledger/kelvin/codec"
	"github.com/iotaledger/kelvin/digest"
	"github.com/iotaledger/kelvin/store"
	"golang.org/x/xerrors"
)

const fileName = "root"

// Root tracks the latest persisted snapshot of a value of type T across
// process restarts, by keeping a digest file alongside the Store's own
// on-disk state.
type Root[T codec.Codec] struct {
	dir   string
	store *store.Store
}

// New opens a Root rooted at dir, backed by s.
func New[T codec.Codec](dir string, s *store.Store) *Root[T] {
	return &Root[T]{dir: dir, store: s}
}

// Restore reads the latest root digest (if any) and decodes the value it
// points to. Returns the zero value, ok=false, if no root has ever been
// set.
func (r *Root[T]) Restore(decode codec.Decoder[T]) (value T, ok bool, err error) {
	path := filepath.Join(r.dir, fileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, xerrors.Errorf("root: reading pointer file: %w", err)
	}
	if len(raw) != digest.Size {
		var zero T
		return zero, false, xerrors.Errorf("root: pointer file has %d bytes, want %d", len(raw), digest.Size)
	}
	d := digest.FromBytes(raw)
	snap := store.NewSnapshot[T](r.store, d)
	v, err := store.Restore(snap, decode)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// SetRoot persists value through the Store, flushes it, and atomically
// updates the pointer file to the resulting digest.
func (r *Root[T]) SetRoot(value T) (digest.Digest, error) {
	snap, err := store.Persist(r.store, value)
	if err != nil {
		return digest.Digest{}, err
	}
	if err := r.store.Flush(); err != nil {
		return digest.Digest{}, err
	}
	if err := r.writePointer(snap.Digest); err != nil {
		return digest.Digest{}, err
	}
	return snap.Digest, nil
}

func (r *Root[T]) writePointer(d digest.Digest) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return xerrors.Errorf("root: creating dir: %w", err)
	}
	tmp, err := os.CreateTemp(r.dir, fileName+".tmp-*")
	if err != nil {
		return xerrors.Errorf("root: creating temp pointer file: %w", err)
	}
	tmpPath := tmp.Name()
	bytes := d.Bytes()
	if _, err := tmp.Write(bytes); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return xerrors.Errorf("root: writing temp pointer file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return xerrors.Errorf("root: syncing temp pointer file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return xerrors.Errorf("root: closing temp pointer file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(r.dir, fileName)); err != nil {
		_ = os.Remove(tmpPath)
		return xerrors.Errorf("root: renaming pointer file into place: %w", err)
	}
	return nil
}
