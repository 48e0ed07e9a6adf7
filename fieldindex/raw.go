package fieldindex

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/objalloc/codec"
)

// Raw is the intermediate, parsed-but-unbuilt form of an Index.
//
// It is also the wire form: an Index encodes as its Raw with elements in
// index order.
type Raw[E any, V Value] struct {
	Span     Span[V] `json:"span"`
	Unit     V       `json:"unit"`
	Elements []E     `json:"elements"`
}

// Raw returns the intermediate form of ix. Elements are copied.
func (ix *Index[E, V, PE]) Raw() Raw[E, V] {
	return Raw[E, V]{
		Span:     ix.span,
		Unit:     ix.unit,
		Elements: ix.Elements(),
	}
}

// ParseRaw decodes data into the intermediate form without building the
// index. A nil codec selects codec.Default.
func ParseRaw[E any, V Value](data []byte, c codec.Codec) (Raw[E, V], error) {
	if c == nil {
		c = codec.Default
	}
	var raw Raw[E, V]
	if err := c.Unmarshal(data, &raw); err != nil {
		return Raw[E, V]{}, fmt.Errorf("fieldindex: parse %s payload: %w", c.Name(), err)
	}
	return raw, nil
}

// FromRaw builds an index from its intermediate form. It runs the same
// validation as WithElements.
func FromRaw[E any, V Value, PE Element[E, V]](raw Raw[E, V]) (*Index[E, V, PE], error) {
	return WithElements[E, V, PE](raw.Span, raw.Unit, raw.Elements)
}

// Encode serializes ix with c. A nil codec selects codec.Default.
func (ix *Index[E, V, PE]) Encode(c codec.Codec) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}
	return c.Marshal(ix.Raw())
}

// MarshalJSON implements json.Marshaler.
func (ix *Index[E, V, PE]) MarshalJSON() ([]byte, error) {
	return json.Marshal(ix.Raw())
}

// UnmarshalJSON implements json.Unmarshaler. The receiver is replaced only
// if the payload parses and validates.
func (ix *Index[E, V, PE]) UnmarshalJSON(data []byte) error {
	var raw Raw[E, V]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := FromRaw[E, V, PE](raw)
	if err != nil {
		return err
	}
	*ix = *built
	return nil
}
