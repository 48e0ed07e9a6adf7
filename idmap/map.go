package idmap

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
)

// ErrInvalidID is the panic value raised by MustGet for an identifier that is
// not present in the store.
var ErrInvalidID = errors.New("idmap: invalid id")

// ErrIDExhausted is the panic value raised when a new identifier is requested
// after the counter reached math.MaxUint64.
var ErrIDExhausted = errors.New("idmap: id space exhausted")

// Map stores values by identifier and issues new identifiers from a
// monotonic counter.
//
// Invariant: maxID is greater than or equal to every key ever stored, and it
// never decreases.
type Map[K ID, V any] struct {
	inner map[K]V
	maxID uint64
}

// New creates an empty store keyed by DefaultID.
func New[V any]() *Map[DefaultID, V] {
	return WithIDCapacity[DefaultID, V](0)
}

// WithCapacity creates an empty store keyed by DefaultID with room for
// capacity entries.
func WithCapacity[V any](capacity int) *Map[DefaultID, V] {
	return WithIDCapacity[DefaultID, V](capacity)
}

// NewWithID creates an empty store for a custom identifier type.
func NewWithID[K ID, V any]() *Map[K, V] {
	return WithIDCapacity[K, V](0)
}

// WithIDCapacity creates an empty store for a custom identifier type with
// room for capacity entries.
func WithIDCapacity[K ID, V any](capacity int) *Map[K, V] {
	if capacity < 0 {
		capacity = 0
	}
	return &Map[K, V]{
		inner: make(map[K]V, capacity),
	}
}

// FromSlice builds a store from values, issuing identifiers 1..len(values)
// in order. The returned slice holds the identifier of values[i] at index i.
func FromSlice[K ID, V any](values []V) (*Map[K, V], []K) {
	m := WithIDCapacity[K, V](len(values))
	ids := make([]K, len(values))
	for i, v := range values {
		ids[i] = m.Insert(v)
	}
	return m, ids
}

// NextID returns the identifier the next Insert or Reserve would issue,
// without consuming it. Once the counter is exhausted it returns the nil
// identifier.
func (m *Map[K, V]) NextID() K {
	if m.Exhausted() {
		return Nil[K]()
	}
	return K(m.maxID + 1)
}

// Exhausted reports whether the counter reached math.MaxUint64, after which
// no identifier can be issued.
func (m *Map[K, V]) Exhausted() bool {
	return m.maxID == math.MaxUint64
}

// Remaining returns how many identifiers can still be issued.
func (m *Map[K, V]) Remaining() uint64 {
	return math.MaxUint64 - m.maxID
}

// Reserve advances the counter and returns the new identifier without
// storing anything under it. The identifier is consumed even if the caller
// never stores a value. Reserve panics with ErrIDExhausted once the counter
// is exhausted.
func (m *Map[K, V]) Reserve() K {
	if m.Exhausted() {
		panic(ErrIDExhausted)
	}
	m.maxID++
	return K(m.maxID)
}

// Insert stores value under a freshly issued identifier and returns it. Like
// Reserve, it panics with ErrIDExhausted once the counter is exhausted.
func (m *Map[K, V]) Insert(value V) K {
	id := m.Reserve()
	m.ensure()
	m.inner[id] = value
	return id
}

// ensure makes the zero Map usable.
func (m *Map[K, V]) ensure() {
	if m.inner == nil {
		m.inner = make(map[K]V)
	}
}

// InsertWithID stores value under an externally chosen identifier, for
// example when restoring persisted state. If id is above the counter the
// counter is raised to id; it is never lowered. The previous value, if any,
// is returned.
func (m *Map[K, V]) InsertWithID(id K, value V) (V, bool) {
	if uint64(id) > m.maxID {
		m.maxID = uint64(id)
	}
	m.ensure()
	old, ok := m.inner[id]
	m.inner[id] = value
	return old, ok
}

// InsertCyclic reserves the next identifier, passes it to f to build the
// value and stores the result under it.
//
// Because the identifier is reserved before f runs, f may itself insert into
// the same store: those inserts receive strictly larger identifiers. If f
// writes to the reserved identifier directly, the value returned by f
// replaces it.
func (m *Map[K, V]) InsertCyclic(f func(K) V) K {
	id := m.Reserve()
	value := f(id)
	m.ensure()
	m.inner[id] = value
	return id
}

// Get returns the value stored under id.
func (m *Map[K, V]) Get(id K) (V, bool) {
	v, ok := m.inner[id]
	return v, ok
}

// MustGet returns the value stored under id. A missing identifier is a
// programming error and panics.
func (m *Map[K, V]) MustGet(id K) V {
	v, ok := m.inner[id]
	if !ok {
		panic(fmt.Errorf("%w: %d", ErrInvalidID, uint64(id)))
	}
	return v
}

// Update applies fn to the value stored under id in place. It reports
// whether id was present.
func (m *Map[K, V]) Update(id K, fn func(*V)) bool {
	v, ok := m.inner[id]
	if !ok {
		return false
	}
	fn(&v)
	m.inner[id] = v
	return true
}

// Remove deletes id and returns its value. The identifier is not reissued.
func (m *Map[K, V]) Remove(id K) (V, bool) {
	v, ok := m.inner[id]
	if ok {
		delete(m.inner, id)
	}
	return v, ok
}

// ContainsID reports whether id is stored.
func (m *Map[K, V]) ContainsID(id K) bool {
	_, ok := m.inner[id]
	return ok
}

// MaxID returns the highest identifier ever issued or restored, or zero.
// It does not move back after removals.
func (m *Map[K, V]) MaxID() K {
	return K(m.maxID)
}

// Len returns the number of stored entries.
func (m *Map[K, V]) Len() int {
	return len(m.inner)
}

// IsEmpty reports whether the store holds no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return len(m.inner) == 0
}

// Clear removes every entry but keeps the counter, so identifiers issued
// after Clear never collide with ones handed out before it.
func (m *Map[K, V]) Clear() {
	clear(m.inner)
}

// All iterates over every entry in unspecified order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.inner {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Keys returns every stored identifier in ascending order.
func (m *Map[K, V]) Keys() []K {
	return slices.Sorted(maps.Keys(m.inner))
}

// Clone returns an independent copy with the same entries and counter.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{
		inner: maps.Clone(m.inner),
		maxID: m.maxID,
	}
}
