// Package common carries the one piece of ambient scaffolding shared
// across every engine package that the type system can't express on its
// own: the invariant-violation assertion.
package common

import "fmt"

// Assert panics with a formatted message if cond is false. Used only for
// conditions that indicate a bug in the engine itself (a Leaf-kind handle
// whose bytes decode to a node, an out-of-range child index), never for
// recoverable input errors, which are returned as errors instead.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
