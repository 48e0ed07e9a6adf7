package objalloc

import (
	"fmt"

	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
)

// Object is the constraint on storable domain objects: the pointer type *O
// must provide the derived-field capability.
type Object[O any, V fieldindex.Value] interface {
	*O
	fieldindex.Fielded[V]
}

// Record pairs a domain object with the identifier it was issued.
//
// A Record is what the field index stores. Its derived value is always the
// object's, so it is recomputed rather than cached. Records compare equal
// when both identifier and object do.
type Record[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]] struct {
	ID     K `json:"id"`
	Object O `json:"object"`
}

// FieldValue returns the object's derived value.
func (r *Record[K, O, V, PO]) FieldValue() V {
	return PO(&r.Object).FieldValue()
}

// FieldRef returns a read-only view of the object's derived value.
func (r *Record[K, O, V, PO]) FieldRef() *V {
	return PO(&r.Object).FieldRef()
}

// FieldMut returns a writable reference to the object's derived value.
func (r *Record[K, O, V, PO]) FieldMut() *V {
	return PO(&r.Object).FieldMut()
}

// String returns a short description of the record.
func (r Record[K, O, V, PO]) String() string {
	return fmt.Sprintf("Record(%d:%v)", uint64(r.ID), r.FieldValue())
}

// RecordIndex is the field index specialization an Allocator owns.
type RecordIndex[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]] = fieldindex.Index[Record[K, O, V, PO], V, *Record[K, O, V, PO]]
