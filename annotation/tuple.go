package annotation

import "io"

// Tuple2 is the generic composite annotation: if A = (A1, A2) where
// each Ai annotates the same leaf, injection and
// combination are derived pointwise, and each Ai is available via a
// projection. twothree uses Tuple2[MaxKey[K], Cardinality[uint64]] so a
// Keyed search can read the MaxKey projection while a rank-indexed search
// reads the Cardinality projection off the very same annotation value.
type Tuple2[A1 any, A2 any] struct {
	First  A1
	Second A2
}

// Combine folds b into t pointwise, using each component's own combine
// function. Because it takes those functions as arguments, Tuple2 does
// not satisfy Associative; CombineTuple2 is its sequence fold.
func (t Tuple2[A1, A2]) Combine(b Tuple2[A1, A2], combine1 func(A1, A1) A1, combine2 func(A2, A2) A2) Tuple2[A1, A2] {
	return Tuple2[A1, A2]{
		First:  combine1(t.First, b.First),
		Second: combine2(t.Second, b.Second),
	}
}

// Project1 returns the first component, the projection a Keyed search
// method would consume off a MaxKey-carrying tuple.
func (t Tuple2[A1, A2]) Project1() A1 { return t.First }

// Project2 returns the second component, e.g. the Cardinality projection
// a rank-indexed search method consumes.
func (t Tuple2[A1, A2]) Project2() A2 { return t.Second }

// CombineTuple2 folds a non-empty sequence of Tuple2 annotations pointwise,
// given each component's own combine function (since Go cannot express
// "A1 implements Associative[A1]" as a constraint usable from inside
// another generic function without also parameterizing over it; simpler
// to take the two combine functions directly).
func CombineTuple2[A1 any, A2 any](elements []Tuple2[A1, A2], combine1 func(A1, A1) A1, combine2 func(A2, A2) A2) (Tuple2[A1, A2], bool) {
	if len(elements) == 0 {
		var zero Tuple2[A1, A2]
		return zero, false
	}
	acc := elements[0]
	for _, e := range elements[1:] {
		acc = acc.Combine(e, combine1, combine2)
	}
	return acc, true
}

// PersistTuple2 writes both components in order using their own Persist
// functions.
func PersistTuple2[A1 any, A2 any](w io.Writer, t Tuple2[A1, A2], persist1 func(io.Writer, A1) error, persist2 func(io.Writer, A2) error) error {
	if err := persist1(w, t.First); err != nil {
		return err
	}
	return persist2(w, t.Second)
}

// RestoreTuple2 reads both components in order.
func RestoreTuple2[A1 any, A2 any](r io.Reader, restore1 func(io.Reader) (A1, error), restore2 func(io.Reader) (A2, error)) (Tuple2[A1, A2], error) {
	a1, err := restore1(r)
	if err != nil {
		var zero Tuple2[A1, A2]
		return zero, err
	}
	a2, err := restore2(r)
	if err != nil {
		var zero Tuple2[A1, A2]
		return zero, err
	}
	return Tuple2[A1, A2]{First: a1, Second: a2}, nil
}
