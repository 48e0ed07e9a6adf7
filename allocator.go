package objalloc

import (
	"fmt"
	"iter"
	"time"

	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
)

// Allocator issues identifiers for domain objects and keeps every object
// indexed by its derived value.
//
// Invariant (between calls): the identifiers in the store are exactly the
// identifiers of the records in the index, and for each of them the value
// kept in the store equals the record's current derived value.
//
// Every mutating method either applies to both stores or to neither.
//
// The zero value is only usable as a Decode or UnmarshalJSON target; every
// other method needs an allocator built by New or one of its variants.
//
// Allocator is not safe for concurrent use; read-only methods may run
// concurrently with each other only.
type Allocator[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]] struct {
	ids   *idmap.Map[K, V]
	index *RecordIndex[K, O, V, PO]
	opts  options
	log   *Logger
}

// New creates an empty allocator bound to span and unit. Invalid
// combinations fail with the field index's construction error.
func New[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](span fieldindex.Span[V], unit V, opts ...Option) (*Allocator[K, O, V, PO], error) {
	return WithCapacity[K, O, V, PO](span, unit, 0, opts...)
}

// WithCapacity creates an empty allocator with both stores sized for
// capacity objects.
func WithCapacity[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](span fieldindex.Span[V], unit V, capacity int, opts ...Option) (*Allocator[K, O, V, PO], error) {
	index, err := fieldindex.WithCapacity[Record[K, O, V, PO], V, *Record[K, O, V, PO]](span, unit, capacity)
	if err != nil {
		return nil, err
	}
	return newAllocator(idmap.WithIDCapacity[K, V](capacity), index, applyOptions(opts)), nil
}

// WithElements creates an allocator holding values, issuing identifiers
// 1..len(values) in order. The field index validates the whole batch at
// once; if any value is out of span or collides, no allocator is returned.
func WithElements[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](span fieldindex.Span[V], unit V, values []O, opts ...Option) (*Allocator[K, O, V, PO], error) {
	records := make([]Record[K, O, V, PO], len(values))
	ids := idmap.WithIDCapacity[K, V](len(values))
	for i := range values {
		ids.InsertCyclic(func(id K) V {
			records[i] = Record[K, O, V, PO]{ID: id, Object: values[i]}
			return records[i].FieldValue()
		})
	}

	index, err := fieldindex.WithElements[Record[K, O, V, PO], V, *Record[K, O, V, PO]](span, unit, records)
	if err != nil {
		return nil, err
	}
	return newAllocator(ids, index, applyOptions(opts)), nil
}

// FromRawParts assembles an allocator from stores obtained elsewhere, for
// example from IntoRawParts. Nothing is checked; call Validate if the parts
// are not known to be consistent.
func FromRawParts[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](ids *idmap.Map[K, V], index *RecordIndex[K, O, V, PO], opts ...Option) *Allocator[K, O, V, PO] {
	return newAllocator(ids, index, applyOptions(opts))
}

func newAllocator[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](ids *idmap.Map[K, V], index *RecordIndex[K, O, V, PO], o options) *Allocator[K, O, V, PO] {
	return &Allocator[K, O, V, PO]{
		ids:   ids,
		index: index,
		opts:  o,
		log:   o.logger.WithSpan(index.Span(), index.Unit()),
	}
}

// IntoRawParts returns the two underlying stores. The allocator must not be
// used afterwards.
func (a *Allocator[K, O, V, PO]) IntoRawParts() (*idmap.Map[K, V], *RecordIndex[K, O, V, PO]) {
	ids, index := a.ids, a.index
	a.ids, a.index = nil, nil
	return ids, index
}

// violation logs and panics. It never returns.
func (a *Allocator[K, O, V, PO]) violation(op string, id K, format string, args ...any) {
	v := &ConsistencyViolation{Op: op, ID: uint64(id), Detail: fmt.Sprintf(format, args...)}
	a.log.LogViolation(v)
	panic(v)
}

// Insert stores o under a new identifier.
//
// The insert is two-phase: the next identifier is peeked, the record is
// offered to the field index, and only an accepted record is committed to
// the identifier store. A rejected object comes back inside an
// *InsertError; neither store nor the identifier counter changes. Once the
// counter has reached math.MaxUint64 every insert is rejected with
// ErrIDExhausted.
func (a *Allocator[K, O, V, PO]) Insert(o O) (K, error) {
	start := time.Now()
	id, err := a.insert(o)
	a.opts.metrics.RecordInsert(time.Since(start), err)
	return id, err
}

// insert is Insert without metrics, shared with Extend.
func (a *Allocator[K, O, V, PO]) insert(o O) (K, error) {
	rec := Record[K, O, V, PO]{Object: o}
	v := rec.FieldValue()
	if a.ids.Exhausted() {
		ierr := a.exhausted(o, v)
		a.log.LogInsert(uint64(a.ids.MaxID()), v, ierr)
		return idmap.Nil[K](), ierr
	}

	id := a.ids.NextID()
	rec.ID = id
	if err := a.index.Insert(rec); err != nil {
		ierr := a.rejected(o, v, err)
		a.log.LogInsert(uint64(id), v, ierr)
		return idmap.Nil[K](), ierr
	}

	a.ids.InsertWithID(id, v)
	a.log.LogInsert(uint64(id), v, nil)
	return id, nil
}

// InsertCyclic builds the object from its own identifier and stores it.
//
// The identifier is consumed before f runs, so f may insert further objects
// into the same allocator; they receive strictly larger identifiers. If the
// built object is rejected, the consumed identifier is not reissued. If the
// counter is exhausted f is not called and an error matching
// ErrIDExhausted is returned.
func (a *Allocator[K, O, V, PO]) InsertCyclic(f func(K) O) (K, error) {
	if a.ids.Exhausted() {
		err := fmt.Errorf("%w: max id %d", ErrIDExhausted, uint64(a.ids.MaxID()))
		a.opts.metrics.RecordInsert(0, err)
		return idmap.Nil[K](), err
	}
	id := a.ids.Reserve()
	o := f(id)
	start := time.Now()

	rec := Record[K, O, V, PO]{ID: id, Object: o}
	v := rec.FieldValue()
	if err := a.index.Insert(rec); err != nil {
		ierr := a.rejected(o, v, err)
		a.log.LogInsert(uint64(id), v, ierr)
		a.opts.metrics.RecordInsert(time.Since(start), ierr)
		return idmap.Nil[K](), ierr
	}

	a.ids.InsertWithID(id, v)
	a.log.LogInsert(uint64(id), v, nil)
	a.opts.metrics.RecordInsert(time.Since(start), nil)
	return id, nil
}

func (a *Allocator[K, O, V, PO]) rejected(o O, v V, err error) *InsertError[O, V] {
	ierr := &InsertError[O, V]{Value: v, Object: o, cause: err}
	if perr, ok := err.(*fieldindex.PlacementError[Record[K, O, V, PO], V]); ok {
		ierr.Kind = perr.Kind
	}
	return ierr
}

func (a *Allocator[K, O, V, PO]) exhausted(o O, v V) *InsertError[O, V] {
	return &InsertError[O, V]{
		Value:  v,
		Object: o,
		cause:  fmt.Errorf("%w: max id %d", ErrIDExhausted, uint64(a.ids.MaxID())),
	}
}

// Remove deletes the object stored under id and returns it.
//
// The identifier store is consulted first; an unknown id touches nothing.
// A known id whose record is missing from the index is a consistency
// violation and panics.
func (a *Allocator[K, O, V, PO]) Remove(id K) (O, bool) {
	v, ok := a.ids.Remove(id)
	if !ok {
		a.log.LogRemove(uint64(id), false)
		a.opts.metrics.RecordRemove(false)
		var zero O
		return zero, false
	}

	rec, ok := a.index.Remove(v)
	if !ok {
		a.violation("remove", id, "no record at value %v", v)
	}
	if rec.ID != id {
		a.violation("remove", id, "record at value %v belongs to id %d", v, uint64(rec.ID))
	}

	a.log.LogRemove(uint64(id), true)
	a.opts.metrics.RecordRemove(true)
	return rec.Object, true
}

// Modify applies fn to the object stored under id, relocating it in the
// field index if its derived value changed. The identifier never changes.
//
// fn works on a shallow copy that replaces the stored object only on
// success. If the new value is out of span or taken, a *ModifyError is
// returned and the stored object keeps its fields, but writes fn made
// through slices, maps or pointers it shares with the copy survive.
// Unknown ids return ErrNotFound.
func (a *Allocator[K, O, V, PO]) Modify(id K, fn func(*O)) error {
	return a.TryModify(id, func(o *O) error {
		fn(o)
		return nil
	})
}

// TryModify is Modify for a fallible fn. An error from fn is returned
// unchanged and neither store is touched. The shallow-copy rollback
// described on Modify applies to both failure paths.
func (a *Allocator[K, O, V, PO]) TryModify(id K, fn func(*O) error) error {
	start := time.Now()
	v, ok := a.ids.Get(id)
	if !ok {
		err := fmt.Errorf("%w: %d", ErrNotFound, uint64(id))
		a.opts.metrics.RecordModify(time.Since(start), err)
		return err
	}
	if !a.index.Contains(v) {
		a.violation("modify", id, "no record at value %v", v)
	}

	var fnErr error
	nv, err := a.index.TryModify(v, func(rec *Record[K, O, V, PO]) error {
		if rec.ID != id {
			a.violation("modify", id, "record at value %v belongs to id %d", v, uint64(rec.ID))
		}
		fnErr = fn(&rec.Object)
		return fnErr
	})
	if err != nil {
		if fnErr != nil {
			a.log.LogModify(uint64(id), v, nil, fnErr)
			a.opts.metrics.RecordModify(time.Since(start), fnErr)
			return fnErr
		}
		merr := &ModifyError[V]{ID: uint64(id), From: v, cause: err}
		if perr, ok := err.(*fieldindex.PlacementError[Record[K, O, V, PO], V]); ok {
			merr.To = perr.Value
		}
		a.log.LogModify(uint64(id), v, nil, merr)
		a.opts.metrics.RecordModify(time.Since(start), merr)
		return merr
	}

	a.ids.InsertWithID(id, nv)
	a.log.LogModify(uint64(id), v, nv, nil)
	a.opts.metrics.RecordModify(time.Since(start), nil)
	return nil
}

// Extend inserts every value that fits, in order, and returns the rejected
// ones. Accepted values get consecutive identifiers. The batch is recorded
// once in the metrics collector, not per element.
func (a *Allocator[K, O, V, PO]) Extend(values []O) []*InsertError[O, V] {
	start := time.Now()
	var rejected []*InsertError[O, V]
	for _, o := range values {
		if _, err := a.insert(o); err != nil {
			rejected = append(rejected, err.(*InsertError[O, V]))
		}
	}
	a.log.LogExtend(len(values), len(rejected))
	a.opts.metrics.RecordBatchInsert(len(values), len(rejected), time.Since(start))
	return rejected
}

// TryExtend inserts values in order and stops at the first rejection. The
// identifiers of the inserted prefix are returned together with an
// *ExtendError naming the failing element; the prefix stays inserted. If the
// identifier counter would pass math.MaxUint64, TryExtend stops at the
// first element without an identifier and reports ErrIDExhausted for it.
func (a *Allocator[K, O, V, PO]) TryExtend(values []O) ([]K, error) {
	start := time.Now()
	limit := len(values)
	if remaining := a.ids.Remaining(); uint64(limit) > remaining {
		limit = int(remaining)
	}

	base := uint64(a.ids.MaxID()) + 1
	records := make([]Record[K, O, V, PO], limit)
	for i := range limit {
		records[i] = Record[K, O, V, PO]{ID: K(base + uint64(i)), Object: values[i]}
	}

	n, err := a.index.TryExtend(records)

	ids := make([]K, n)
	for i := range n {
		ids[i] = records[i].ID
		a.ids.InsertWithID(records[i].ID, records[i].FieldValue())
	}

	var ierr *InsertError[O, V]
	switch {
	case err != nil:
		rec := &records[n]
		cause := err
		if be, ok := err.(*fieldindex.BatchError[Record[K, O, V, PO], V]); ok {
			cause = be.Err
		}
		ierr = a.rejected(rec.Object, rec.FieldValue(), cause)
	case limit < len(values):
		n = limit
		rec := Record[K, O, V, PO]{Object: values[n]}
		ierr = a.exhausted(rec.Object, rec.FieldValue())
	}

	if ierr != nil {
		a.log.LogExtend(n+1, 1)
		a.opts.metrics.RecordBatchInsert(n+1, 1, time.Since(start))
		return ids, &ExtendError[O, V]{Index: n, Err: ierr}
	}
	a.log.LogExtend(len(values), 0)
	a.opts.metrics.RecordBatchInsert(len(values), 0, time.Since(start))
	return ids, nil
}

// GetWithID returns the object stored under id.
//
// The identifier store yields the derived value, which then keys the field
// index lookup.
func (a *Allocator[K, O, V, PO]) GetWithID(id K) (O, bool) {
	rec, ok := a.GetRecord(id)
	return rec.Object, ok
}

// GetRecord returns the record stored under id.
func (a *Allocator[K, O, V, PO]) GetRecord(id K) (Record[K, O, V, PO], bool) {
	v, ok := a.ids.Get(id)
	if !ok {
		return Record[K, O, V, PO]{}, false
	}
	rec, ok := a.index.Get(v)
	if !ok {
		a.violation("get", id, "no record at value %v", v)
	}
	return rec, true
}

// GetWithValue returns the record whose object has derived value v.
func (a *Allocator[K, O, V, PO]) GetWithValue(v V) (Record[K, O, V, PO], bool) {
	return a.index.Get(v)
}

// ValueOf returns the derived value recorded for id.
func (a *Allocator[K, O, V, PO]) ValueOf(id K) (V, bool) {
	return a.ids.Get(id)
}

// ContainsID reports whether id is stored.
func (a *Allocator[K, O, V, PO]) ContainsID(id K) bool {
	return a.ids.ContainsID(id)
}

// ContainsValue reports whether some object has derived value v.
func (a *Allocator[K, O, V, PO]) ContainsValue(v V) bool {
	return a.index.Contains(v)
}

// Len returns the number of stored objects.
func (a *Allocator[K, O, V, PO]) Len() int {
	return a.ids.Len()
}

// IsEmpty reports whether no objects are stored.
func (a *Allocator[K, O, V, PO]) IsEmpty() bool {
	return a.ids.IsEmpty()
}

// MaxID returns the highest identifier issued so far, or zero.
func (a *Allocator[K, O, V, PO]) MaxID() K {
	return a.ids.MaxID()
}

// Span returns the field index span.
func (a *Allocator[K, O, V, PO]) Span() fieldindex.Span[V] {
	return a.index.Span()
}

// Unit returns the field index unit.
func (a *Allocator[K, O, V, PO]) Unit() V {
	return a.index.Unit()
}

// All iterates over records in ascending derived-value order.
func (a *Allocator[K, O, V, PO]) All() iter.Seq[Record[K, O, V, PO]] {
	return a.index.All()
}

// IDs returns every stored identifier in ascending order.
func (a *Allocator[K, O, V, PO]) IDs() []K {
	return a.ids.Keys()
}

// Clear removes every object. The identifier counter is kept, so identifiers
// issued before Clear are never handed out again.
func (a *Allocator[K, O, V, PO]) Clear() {
	a.ids.Clear()
	a.index.Clear()
}

// Validate checks the correspondence between the identifier store and the
// field index and returns the first breach as a *ConsistencyViolation.
func (a *Allocator[K, O, V, PO]) Validate() error {
	if a.ids.Len() != a.index.Len() {
		return &ConsistencyViolation{
			Op:     "validate",
			Detail: fmt.Sprintf("store holds %d ids, index holds %d records", a.ids.Len(), a.index.Len()),
		}
	}
	for rec := range a.index.All() {
		if idmap.IsNil(rec.ID) {
			return &ConsistencyViolation{Op: "validate", Detail: fmt.Sprintf("record at value %v has reserved id 0", rec.FieldValue())}
		}
		v, ok := a.ids.Get(rec.ID)
		if !ok {
			return &ConsistencyViolation{Op: "validate", ID: uint64(rec.ID), Detail: "record id missing from store"}
		}
		if fv := rec.FieldValue(); v != fv {
			return &ConsistencyViolation{
				Op:     "validate",
				ID:     uint64(rec.ID),
				Detail: fmt.Sprintf("store holds value %v, record has %v", v, fv),
			}
		}
	}
	return nil
}
