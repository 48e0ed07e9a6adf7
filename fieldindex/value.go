package fieldindex

import "fmt"

// Value is the set of scalar types an element can be indexed by.
type Value interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// Fielded is the derived-field capability every indexed element provides.
//
// FieldValue returns a copy of the derived value. FieldRef returns a view of
// it that callers must not write through. FieldMut returns a writable
// reference; writing through it changes where the element belongs, so it is
// only used on elements that are not currently placed, or inside Modify.
type Fielded[V Value] interface {
	FieldValue() V
	FieldRef() *V
	FieldMut() *V
}

// Element ties an element type E to its pointer type, which carries the
// Fielded capability.
type Element[E any, V Value] interface {
	*E
	Fielded[V]
}

// Span is the half-open range [Start, End) of accepted derived values.
type Span[V Value] struct {
	Start V `json:"start"`
	End   V `json:"end"`
}

// NewSpan returns the span [start, end).
func NewSpan[V Value](start, end V) Span[V] {
	return Span[V]{Start: start, End: end}
}

// Contains reports whether v lies in [Start, End). NaN is never contained.
func (s Span[V]) Contains(v V) bool {
	return v >= s.Start && v < s.End
}

// IsValid reports whether the span is non-empty.
func (s Span[V]) IsValid() bool {
	return s.Start < s.End
}

// String returns the span in interval notation.
func (s Span[V]) String() string {
	return fmt.Sprintf("[%v, %v)", s.Start, s.End)
}

// isFloat reports whether V is a floating-point type.
func isFloat[V Value]() bool {
	var one V = 1
	return one/2 != 0
}
