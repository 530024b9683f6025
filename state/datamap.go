package state

import (
	"fmt"
)

// ValueKind tags the type of a Value stored in the data map, per
// spec.md §9 "Dynamic reflection / named data map": the arbitrary-typed
// inter-plugin bag of the original Pacer::Robot becomes a mapping from
// string to a tagged variant over the small set of types the controller
// actually exchanges.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindVector
	KindMatrix
	KindString
)

// Value is a tagged variant over the types components exchange through
// the generic data map. The zero Value is an invalid placeholder -- use
// one of the constructors below.
type Value struct {
	Kind   ValueKind
	Scalar float64
	Vector []float64
	Matrix [][]float64
	Str    string
}

func ScalarValue(v float64) Value           { return Value{Kind: KindScalar, Scalar: v} }
func VectorValue(v []float64) Value         { return Value{Kind: KindVector, Vector: v} }
func MatrixValue(v [][]float64) Value       { return Value{Kind: KindMatrix, Matrix: v} }
func StringValue(v string) Value            { return Value{Kind: KindString, Str: v} }

// SetData stores v under name, overwriting any previous value. Never
// stores raw pointers -- Value only ever holds plain data, per spec.md
// §4.1.
func (s *Store) SetData(name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = v
}

// GetData retrieves the value stored under name, failing with
// KeyNotFound if absent or TypeMismatch if its kind doesn't match want.
func (s *Store) GetData(name string, want ValueKind) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[name]
	if !ok {
		return Value{}, newErr("GetData", KeyNotFound, fmt.Errorf("key %q not found", name))
	}
	if v.Kind != want {
		return Value{}, newErr("GetData", TypeMismatch, fmt.Errorf("key %q: stored kind differs from requested kind", name))
	}
	return v, nil
}

// DeleteData removes name from the data map, if present.
func (s *Store) DeleteData(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
}
