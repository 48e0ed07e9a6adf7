package fieldindex

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSpan is returned when a span is empty or unordered.
	ErrInvalidSpan = errors.New("fieldindex: invalid span")

	// ErrInvalidUnit is returned when the unit is not strictly positive.
	ErrInvalidUnit = errors.New("fieldindex: invalid unit")

	// ErrTooManyBuckets is returned when span/unit yields more buckets than
	// the index can address.
	ErrTooManyBuckets = errors.New("fieldindex: too many buckets")

	// ErrOutOfSpan is returned when a derived value lies outside the span.
	ErrOutOfSpan = errors.New("fieldindex: value out of span")

	// ErrAlreadyExist is returned when a derived value is already occupied.
	ErrAlreadyExist = errors.New("fieldindex: value already exists")

	// ErrNotFound is returned when no element has the requested value.
	ErrNotFound = errors.New("fieldindex: value not found")
)

// ConstructionError reports an invalid span/unit combination.
//
// The cause is one of ErrInvalidSpan, ErrInvalidUnit or ErrTooManyBuckets
// and can be matched with errors.Is.
type ConstructionError[V Value] struct {
	Span  Span[V]
	Unit  V
	cause error
}

func (e *ConstructionError[V]) Error() string {
	return fmt.Sprintf("%v (span %s, unit %v)", e.cause, e.Span, e.Unit)
}

func (e *ConstructionError[V]) Unwrap() error { return e.cause }

// PlacementKind classifies why an element could not be placed.
type PlacementKind uint8

const (
	// OutOfSpan means the derived value lies outside the index span.
	OutOfSpan PlacementKind = iota + 1
	// AlreadyExist means another element already holds the derived value.
	AlreadyExist
)

// String returns the kind name.
func (k PlacementKind) String() string {
	switch k {
	case OutOfSpan:
		return "OutOfSpan"
	case AlreadyExist:
		return "AlreadyExist"
	default:
		return fmt.Sprintf("PlacementKind(%d)", uint8(k))
	}
}

func (k PlacementKind) sentinel() error {
	switch k {
	case OutOfSpan:
		return ErrOutOfSpan
	case AlreadyExist:
		return ErrAlreadyExist
	default:
		return nil
	}
}

// PlacementError is returned when an element is rejected. It carries the
// rejected element back so the caller does not lose it.
type PlacementError[E any, V Value] struct {
	Kind    PlacementKind
	Value   V
	Element E
}

func (e *PlacementError[E, V]) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind.sentinel(), e.Value)
}

func (e *PlacementError[E, V]) Unwrap() error { return e.Kind.sentinel() }

// BatchError reports the first element of a batch that failed validation.
// Nothing from the batch was placed.
type BatchError[E any, V Value] struct {
	Index int
	Err   *PlacementError[E, V]
}

func (e *BatchError[E, V]) Error() string {
	return fmt.Sprintf("element %d: %v", e.Index, e.Err)
}

func (e *BatchError[E, V]) Unwrap() error { return e.Err }
