package idmap

import "strconv"

// ID is the constraint satisfied by every identifier type.
//
// A new identifier type is declared in one line:
//
//	type UserID uint64
//
// The conversions UserID(u) and uint64(id) are lossless in both directions,
// and every codec encodes the value as a bare unsigned integer.
type ID interface {
	~uint64
}

// DefaultID is the identifier type used when no custom type is needed.
type DefaultID uint64

// String returns the decimal form of the identifier.
func (id DefaultID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// FromUint64 converts a raw integer into the identifier type K.
func FromUint64[K ID](v uint64) K {
	return K(v)
}

// ToUint64 converts an identifier into its raw integer form.
func ToUint64[K ID](id K) uint64 {
	return uint64(id)
}

// Nil returns the reserved zero identifier. It is never issued.
func Nil[K ID]() K {
	return 0
}

// IsNil reports whether id is the reserved zero identifier.
func IsNil[K ID](id K) bool {
	return id == 0
}
