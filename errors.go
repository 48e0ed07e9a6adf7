package objalloc

import (
	"errors"
	"fmt"

	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
)

var (
	// ErrNotFound is returned when an identifier is not present.
	ErrNotFound = errors.New("objalloc: id not found")

	// ErrOutOfSpan is matched by errors.Is when a derived value lies
	// outside the allocator's span.
	ErrOutOfSpan = fieldindex.ErrOutOfSpan

	// ErrAlreadyExist is matched by errors.Is when a derived value is
	// already held by another object.
	ErrAlreadyExist = fieldindex.ErrAlreadyExist

	// ErrNilID is returned when a payload carries the reserved identifier 0.
	ErrNilID = errors.New("objalloc: reserved id 0")

	// ErrDuplicateID is returned when a payload carries the same identifier
	// twice.
	ErrDuplicateID = errors.New("objalloc: duplicate id")

	// ErrIDExhausted is matched by errors.Is when the identifier counter has
	// reached math.MaxUint64 and no new identifier can be issued.
	ErrIDExhausted = idmap.ErrIDExhausted

	// ErrUninitialized is returned when a zero-value Allocator, or one whose
	// parts were taken by IntoRawParts, is asked to encode itself.
	ErrUninitialized = errors.New("objalloc: allocator not initialized")
)

// InsertError is returned when an object is rejected by the field index or
// when no identifier is left for it. The object is handed back so the caller
// never loses it. Kind is zero for identifier exhaustion.
//
// The original underlying error can be accessed via errors.Unwrap.
type InsertError[O any, V fieldindex.Value] struct {
	Kind   fieldindex.PlacementKind
	Value  V
	Object O
	cause  error
}

func (e *InsertError[O, V]) Error() string {
	if e.Kind == 0 {
		return fmt.Sprintf("objalloc: insert rejected: %v", e.cause)
	}
	return fmt.Sprintf("objalloc: insert rejected (%s): %v", e.Kind, e.cause)
}

func (e *InsertError[O, V]) Unwrap() error { return e.cause }

// ExtendError reports the first object TryExtend could not insert. Objects
// before Index were inserted and keep their identifiers.
type ExtendError[O any, V fieldindex.Value] struct {
	Index int
	Err   *InsertError[O, V]
}

func (e *ExtendError[O, V]) Error() string {
	return fmt.Sprintf("objalloc: extend stopped at element %d: %v", e.Index, e.Err)
}

func (e *ExtendError[O, V]) Unwrap() error { return e.Err }

// ModifyError is returned when a modified object no longer fits the field
// index. The object inside the allocator keeps its fields; only writes
// through slices, maps or pointers it shares survive.
//
// Errors returned by the caller's modify function are not wrapped.
type ModifyError[V fieldindex.Value] struct {
	ID    uint64
	From  V
	To    V
	cause error
}

func (e *ModifyError[V]) Error() string {
	return fmt.Sprintf("objalloc: modify id %d (%v -> %v): %v", e.ID, e.From, e.To, e.cause)
}

func (e *ModifyError[V]) Unwrap() error { return e.cause }

// Deserialization stages.
const (
	StageParse   = "parse"
	StageRestore = "restore"
	StageBuild   = "build"
)

// DeserializeError wraps a failure of the decode pipeline with the stage it
// happened in. No partial allocator is produced.
type DeserializeError struct {
	Stage string
	cause error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("objalloc: deserialize (%s): %v", e.Stage, e.cause)
}

func (e *DeserializeError) Unwrap() error { return e.cause }

// ConsistencyViolation describes a breach of the correspondence between the
// identifier store and the field index. It is a defect, not a recoverable
// condition: mutating operations panic with it, and Validate returns it.
type ConsistencyViolation struct {
	Op     string
	ID     uint64
	Detail string
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("objalloc: consistency violation in %s (id %d): %s", e.Op, e.ID, e.Detail)
}
