// Package idmap provides an identifier store with monotonic, never-reused
// auto-increment identifiers.
//
// The store maps identifiers to values in a hash table and tracks the highest
// identifier ever issued. Auto-generated identifiers start at 1 and grow by
// exactly one per issuance. The counter never moves backwards: removing an
// entry or clearing the store does not make its identifier available again,
// so identifiers held by callers never alias a newer entry.
//
// # Identifier types
//
// Any type whose underlying type is uint64 satisfies [ID]:
//
//	type NodeID uint64
//
//	m := idmap.NewWithID[NodeID, string]()
//	id := m.Insert("root") // NodeID(1)
//
// # Self-referential values
//
// [Map.InsertCyclic] reserves the identifier before building the value, so
// the value can embed its own identifier:
//
//	id := m.InsertCyclic(func(self NodeID) Node {
//	    return Node{Self: self, Parent: parent}
//	})
//
// The store is not safe for concurrent mutation.
package idmap
