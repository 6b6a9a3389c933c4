package backend

import "golang.org/x/xerrors"

// ErrNotFound is returned by Get when the digest is not present in this
// backend. A Store probes its generations in order and only surfaces
// ErrNotFound once every generation has missed.
var ErrNotFound = xerrors.New("backend: digest not found")
