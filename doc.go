// Package objalloc issues stable identifiers for domain objects and keeps
// every object indexed by a scalar value derived from it.
//
// An Allocator owns two stores and keeps them consistent:
//
//   - an identifier store (package idmap) mapping each identifier to the
//     object's derived value, with a monotonic counter that never reissues
//     an identifier, not even after Remove or Clear
//   - a field index (package fieldindex) holding the objects, bucketed by
//     their derived value within a bounded span and quantized by a unit
//
// Every mutating method applies to both stores or to neither.
//
// # Quick Start
//
// Domain objects expose their derived value through three pointer methods:
//
//	type Sprite struct {
//	    Name string
//	    Z    int32
//	}
//
//	func (s *Sprite) FieldValue() int32 { return s.Z }
//	func (s *Sprite) FieldRef() *int32  { return &s.Z }
//	func (s *Sprite) FieldMut() *int32  { return &s.Z }
//
//	span := fieldindex.NewSpan[int32](0, 100)
//	a, _ := objalloc.New[idmap.DefaultID, Sprite, int32](span, 10)
//
//	id, err := a.Insert(Sprite{Name: "hero", Z: 20})
//	sprite, ok := a.GetWithID(id)
//
// # Rejections
//
// The field index rejects a value outside its span and a value another object
// already holds. A rejected insert returns an *InsertError carrying the
// object back; the identifier counter does not move:
//
//	_, err := a.Insert(Sprite{Z: 500})
//	var ierr *objalloc.InsertError[Sprite, int32]
//	if errors.As(err, &ierr) && errors.Is(err, objalloc.ErrOutOfSpan) {
//	    retry(ierr.Object)
//	}
//
// # Self-referential objects
//
// InsertCyclic hands the identifier to a constructor before the object
// exists. The identifier is consumed first, so the constructor may insert
// further objects; they get larger identifiers.
//
// # Persistence
//
// An allocator serializes as its field index alone. Decode rebuilds the
// identifier store from the records, which carry their identifiers:
//
//	data, _ := a.Encode(codec.Default)
//	b, err := objalloc.Decode[idmap.DefaultID, Sprite, int32](data, codec.Default)
//
// Package snapshot frames these payloads with a checksum and optional
// compression and writes them to a blobstore.Store (memory, local disk, S3
// or MinIO).
//
// # Concurrency
//
// Allocator has no internal locking. Mutating methods need exclusive access;
// read-only methods may run concurrently with each other.
package objalloc
