package annotation

import "io"

// Void is the identity annotation: combine is trivial and it persists to
// zero bytes. Used by collections (e.g. list) that need no summary data
// beyond tree shape.
type Void struct{}

// Combine implements Associative.
func (Void) Combine(Void) Void { return Void{} }

// VoidInject implements leaf injection for any leaf type.
func VoidInject[L any](L) Void { return Void{} }

// Persist implements codec.Codec.
func (Void) Persist(io.Writer) error { return nil }

// RestoreVoid implements codec.Decoder[Void].
func RestoreVoid(io.Reader) (Void, error) { return Void{}, nil }
