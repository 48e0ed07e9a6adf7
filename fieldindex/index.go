package fieldindex

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// maxBuckets is the largest bucket count addressable by a uint32 bucket id.
const maxBuckets = math.MaxUint32

// Index holds elements bucketed by their derived value.
//
// Invariants:
//   - every stored element's derived value lies in span
//   - an element lives in bucket floor((v - span.Start) / unit)
//   - each bucket is sorted ascending by derived value without duplicates
//   - occupied contains exactly the ids of non-empty buckets
type Index[E any, V Value, PE Element[E, V]] struct {
	span     Span[V]
	unit     V
	float    bool
	nbuckets uint64

	buckets  map[uint32][]E
	occupied *roaring.Bitmap
	len      int
}

// New creates an empty index bound to span and unit.
func New[E any, V Value, PE Element[E, V]](span Span[V], unit V) (*Index[E, V, PE], error) {
	return WithCapacity[E, V, PE](span, unit, 0)
}

// WithCapacity creates an empty index with room for capacity elements.
func WithCapacity[E any, V Value, PE Element[E, V]](span Span[V], unit V, capacity int) (*Index[E, V, PE], error) {
	n, err := bucketCount(span, unit)
	if err != nil {
		return nil, err
	}

	hint := capacity
	if hint < 0 {
		hint = 0
	}
	if uint64(hint) > n {
		hint = int(n)
	}

	return &Index[E, V, PE]{
		span:     span,
		unit:     unit,
		float:    isFloat[V](),
		nbuckets: n,
		buckets:  make(map[uint32][]E, hint),
		occupied: roaring.New(),
	}, nil
}

// WithElements creates an index holding elems.
//
// The whole batch is validated first: every derived value must lie in span
// and be unique, both against the other elements of the batch. On failure a
// *BatchError naming the first offending element is returned and no index
// is built.
func WithElements[E any, V Value, PE Element[E, V]](span Span[V], unit V, elems []E) (*Index[E, V, PE], error) {
	ix, err := WithCapacity[E, V, PE](span, unit, len(elems))
	if err != nil {
		return nil, err
	}

	seen := make(map[V]struct{}, len(elems))
	for i := range elems {
		v := PE(&elems[i]).FieldValue()
		if !span.Contains(v) {
			return nil, &BatchError[E, V]{
				Index: i,
				Err:   &PlacementError[E, V]{Kind: OutOfSpan, Value: v, Element: elems[i]},
			}
		}
		if _, dup := seen[v]; dup {
			return nil, &BatchError[E, V]{
				Index: i,
				Err:   &PlacementError[E, V]{Kind: AlreadyExist, Value: v, Element: elems[i]},
			}
		}
		seen[v] = struct{}{}
	}

	for i := range elems {
		ix.place(PE(&elems[i]).FieldValue(), elems[i])
	}
	return ix, nil
}

func bucketCount[V Value](span Span[V], unit V) (uint64, error) {
	if !span.IsValid() {
		return 0, &ConstructionError[V]{Span: span, Unit: unit, cause: ErrInvalidSpan}
	}
	if !(unit > 0) {
		return 0, &ConstructionError[V]{Span: span, Unit: unit, cause: ErrInvalidUnit}
	}

	var n uint64
	if isFloat[V]() {
		w := math.Ceil(float64(span.End-span.Start) / float64(unit))
		if math.IsInf(w, 0) || math.IsNaN(w) || w > maxBuckets {
			return 0, &ConstructionError[V]{Span: span, Unit: unit, cause: ErrTooManyBuckets}
		}
		n = uint64(w)
		if n == 0 {
			n = 1
		}
	} else {
		width := uint64(span.End) - uint64(span.Start)
		n = width / uint64(unit)
		if width%uint64(unit) != 0 {
			n++
		}
		if n > maxBuckets {
			return 0, &ConstructionError[V]{Span: span, Unit: unit, cause: ErrTooManyBuckets}
		}
	}
	return n, nil
}

// bucketOf maps an in-span value to its bucket id.
func (ix *Index[E, V, PE]) bucketOf(v V) uint32 {
	var b uint64
	if ix.float {
		b = uint64(float64(v-ix.span.Start) / float64(ix.unit))
	} else {
		b = (uint64(v) - uint64(ix.span.Start)) / uint64(ix.unit)
	}
	if b >= ix.nbuckets {
		b = ix.nbuckets - 1
	}
	return uint32(b)
}

func compareValue[E any, V Value, PE Element[E, V]](e E, v V) int {
	return cmp.Compare(PE(&e).FieldValue(), v)
}

// locate finds the bucket and in-bucket position for v. found reports
// whether an element with exactly v is stored there.
func (ix *Index[E, V, PE]) locate(v V) (b uint32, pos int, found bool) {
	b = ix.bucketOf(v)
	pos, found = slices.BinarySearchFunc(ix.buckets[b], v, compareValue[E, V, PE])
	return b, pos, found
}

// place stores e under v. The caller has checked span membership and
// uniqueness.
func (ix *Index[E, V, PE]) place(v V, e E) {
	b, pos, _ := ix.locate(v)
	ix.buckets[b] = slices.Insert(ix.buckets[b], pos, e)
	ix.occupied.Add(b)
	ix.len++
}

func (ix *Index[E, V, PE]) removeAt(b uint32, pos int) E {
	bucket := ix.buckets[b]
	e := bucket[pos]
	bucket = slices.Delete(bucket, pos, pos+1)
	if len(bucket) == 0 {
		delete(ix.buckets, b)
		ix.occupied.Remove(b)
	} else {
		ix.buckets[b] = bucket
	}
	ix.len--
	return e
}

// check reports why v cannot be placed, or nil.
func (ix *Index[E, V, PE]) check(v V, e E) *PlacementError[E, V] {
	if !ix.span.Contains(v) {
		return &PlacementError[E, V]{Kind: OutOfSpan, Value: v, Element: e}
	}
	if _, _, found := ix.locate(v); found {
		return &PlacementError[E, V]{Kind: AlreadyExist, Value: v, Element: e}
	}
	return nil
}

// Insert places e. A rejected element is returned inside a *PlacementError.
func (ix *Index[E, V, PE]) Insert(e E) error {
	v := PE(&e).FieldValue()
	if perr := ix.check(v, e); perr != nil {
		return perr
	}
	ix.place(v, e)
	return nil
}

// Remove deletes and returns the element holding v.
func (ix *Index[E, V, PE]) Remove(v V) (E, bool) {
	if !ix.span.Contains(v) {
		var zero E
		return zero, false
	}
	b, pos, found := ix.locate(v)
	if !found {
		var zero E
		return zero, false
	}
	return ix.removeAt(b, pos), true
}

// Get returns a copy of the element holding v.
func (ix *Index[E, V, PE]) Get(v V) (E, bool) {
	if !ix.span.Contains(v) {
		var zero E
		return zero, false
	}
	b, pos, found := ix.locate(v)
	if !found {
		var zero E
		return zero, false
	}
	return ix.buckets[b][pos], true
}

// Contains reports whether an element holds v.
func (ix *Index[E, V, PE]) Contains(v V) bool {
	if !ix.span.Contains(v) {
		return false
	}
	_, _, found := ix.locate(v)
	return found
}

// Modify applies fn to the element holding v and relocates it if its derived
// value changed. It returns the new derived value.
//
// fn works on a copy; the stored element is replaced only on success. State
// the element shares through pointers, slices or maps is not protected.
func (ix *Index[E, V, PE]) Modify(v V, fn func(*E)) (V, error) {
	return ix.TryModify(v, func(e *E) error {
		fn(e)
		return nil
	})
}

// TryModify is Modify for a fallible fn. An error from fn is returned
// unchanged and the stored element is left as it was.
func (ix *Index[E, V, PE]) TryModify(v V, fn func(*E) error) (V, error) {
	if !ix.span.Contains(v) {
		return v, fmt.Errorf("%w: %v", ErrNotFound, v)
	}
	b, pos, found := ix.locate(v)
	if !found {
		return v, fmt.Errorf("%w: %v", ErrNotFound, v)
	}

	cp := ix.buckets[b][pos]
	if err := fn(&cp); err != nil {
		return v, err
	}

	nv := PE(&cp).FieldValue()
	if nv == v {
		ix.buckets[b][pos] = cp
		return nv, nil
	}
	if perr := ix.check(nv, cp); perr != nil {
		return v, perr
	}

	ix.removeAt(b, pos)
	ix.place(nv, cp)
	return nv, nil
}

// Extend places every element that fits and returns the rejected ones in
// input order.
func (ix *Index[E, V, PE]) Extend(elems []E) []*PlacementError[E, V] {
	var rejected []*PlacementError[E, V]
	for _, e := range elems {
		v := PE(&e).FieldValue()
		if perr := ix.check(v, e); perr != nil {
			rejected = append(rejected, perr)
			continue
		}
		ix.place(v, e)
	}
	return rejected
}

// TryExtend places elements in order and stops at the first rejection. It
// returns how many elements were placed; those stay in the index.
func (ix *Index[E, V, PE]) TryExtend(elems []E) (int, error) {
	for i, e := range elems {
		if err := ix.Insert(e); err != nil {
			return i, &BatchError[E, V]{Index: i, Err: err.(*PlacementError[E, V])}
		}
	}
	return len(elems), nil
}

// Len returns the number of stored elements.
func (ix *Index[E, V, PE]) Len() int {
	return ix.len
}

// IsEmpty reports whether the index holds no elements.
func (ix *Index[E, V, PE]) IsEmpty() bool {
	return ix.len == 0
}

// Span returns the configured span.
func (ix *Index[E, V, PE]) Span() Span[V] {
	return ix.span
}

// Unit returns the configured unit.
func (ix *Index[E, V, PE]) Unit() V {
	return ix.unit
}

// BucketCount returns the number of addressable buckets.
func (ix *Index[E, V, PE]) BucketCount() uint64 {
	return ix.nbuckets
}

// OccupiedBuckets returns the number of non-empty buckets.
func (ix *Index[E, V, PE]) OccupiedBuckets() uint64 {
	return ix.occupied.GetCardinality()
}

// All iterates over copies of the elements in ascending derived-value order.
// The index must not be mutated during iteration.
func (ix *Index[E, V, PE]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		it := ix.occupied.Iterator()
		for it.HasNext() {
			for _, e := range ix.buckets[it.Next()] {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// Elements returns the elements in index order.
func (ix *Index[E, V, PE]) Elements() []E {
	out := make([]E, 0, ix.len)
	for e := range ix.All() {
		out = append(out, e)
	}
	return out
}

// Values returns the derived values in ascending order.
func (ix *Index[E, V, PE]) Values() []V {
	out := make([]V, 0, ix.len)
	for e := range ix.All() {
		out = append(out, PE(&e).FieldValue())
	}
	return out
}

// Clear removes every element.
func (ix *Index[E, V, PE]) Clear() {
	clear(ix.buckets)
	ix.occupied.Clear()
	ix.len = 0
}
