// Package fieldindex provides a bucketed index of elements keyed by a scalar
// derived from each element.
//
// An Index is bound to a half-open span [Start, End) and a quantization unit.
// Every element exposes its derived value through the [Fielded] capability;
// the value picks a bucket (floor((v - Start) / unit)) and, inside the bucket,
// a sorted position. An exact derived value addresses at most one element.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                         Index                            │
//	├────────────────────────┬─────────────────────────────────┤
//	│  occupied (roaring)    │  buckets map[uint32][]E         │
//	│  bucket ids in order   │  elements sorted by value       │
//	└────────────────────────┴─────────────────────────────────┘
//
// Buckets are allocated on first use, so wide spans with a small unit cost
// nothing until they are populated. The roaring bitmap of occupied buckets
// gives ordered iteration without scanning empty buckets.
//
// # Element capability
//
// Elements are stored by value. Their pointer type implements [Fielded]:
//
//	type Slot struct{ Pos uint32 }
//
//	func (s *Slot) FieldValue() uint32 { return s.Pos }
//	func (s *Slot) FieldRef() *uint32  { return &s.Pos }
//	func (s *Slot) FieldMut() *uint32  { return &s.Pos }
//
//	ix, _ := fieldindex.New[Slot](fieldindex.Span[uint32]{Start: 0, End: 100}, 10)
//
// # Wire format
//
// An Index serializes as [Raw]: {"span":{"start":S,"end":E},"unit":U,"elements":[...]}
// with elements in index order. [ParseRaw] stops at the intermediate form so
// callers can derive their own state from the elements before [FromRaw]
// builds the index.
//
// An Index is not safe for concurrent mutation.
package fieldindex
