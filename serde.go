package objalloc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/objalloc/codec"
	"github.com/hupe1980/objalloc/fieldindex"
	"github.com/hupe1980/objalloc/idmap"
)

// The identifier store is never written: every record already carries its
// identifier and derived value, so an allocator's wire form is exactly its
// field index's.

// MarshalJSON implements json.Marshaler. A zero-value allocator fails with
// ErrUninitialized.
func (a *Allocator[K, O, V, PO]) MarshalJSON() ([]byte, error) {
	if a.index == nil {
		return nil, ErrUninitialized
	}
	return json.Marshal(a.index.Raw())
}

// Encode serializes the allocator with c. A nil codec selects the codec
// configured with WithCodec. A zero-value allocator fails with
// ErrUninitialized.
func (a *Allocator[K, O, V, PO]) Encode(c codec.Codec) ([]byte, error) {
	if a.index == nil {
		return nil, ErrUninitialized
	}
	if c == nil {
		c = a.opts.codec
	}
	return a.index.Encode(c)
}

// UnmarshalJSON implements json.Unmarshaler. The receiver is replaced only
// if the whole pipeline succeeds; its options are kept.
func (a *Allocator[K, O, V, PO]) UnmarshalJSON(data []byte) error {
	return a.Decode(data, codec.JSON{})
}

// Decode replaces the allocator's contents with the payload decoded by c. A
// nil codec selects the codec configured with WithCodec. On failure the
// allocator is left untouched.
func (a *Allocator[K, O, V, PO]) Decode(data []byte, c codec.Codec) error {
	o := a.opts
	if o.logger == nil {
		o = defaultOptions()
	}
	if c == nil {
		c = o.codec
	}

	start := time.Now()
	ids, index, err := decodeParts[K, O, V, PO](data, c)
	if err != nil {
		o.logger.LogDecode(c.Name(), 0, err)
		o.metrics.RecordDecode(0, time.Since(start), err)
		return err
	}
	o.logger.LogDecode(c.Name(), index.Len(), nil)
	o.metrics.RecordDecode(index.Len(), time.Since(start), nil)
	*a = *newAllocator(ids, index, o)
	return nil
}

// Decode rebuilds an allocator from a payload written by Encode.
//
// The payload is parsed once into the field index's raw form. The identifier
// store is sized from the record count and filled by walking the records
// with their own identifiers, which also moves the counter past each of
// them. The field index is then built from the same raw data. A nil codec
// selects codec.Default. Failures are reported as *DeserializeError and no
// partial allocator is returned.
func Decode[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](data []byte, c codec.Codec, opts ...Option) (*Allocator[K, O, V, PO], error) {
	o := applyOptions(opts)
	if c == nil {
		c = o.codec
	}

	start := time.Now()
	ids, index, err := decodeParts[K, O, V, PO](data, c)
	if err != nil {
		o.logger.LogDecode(c.Name(), 0, err)
		o.metrics.RecordDecode(0, time.Since(start), err)
		return nil, err
	}
	o.logger.LogDecode(c.Name(), index.Len(), nil)
	o.metrics.RecordDecode(index.Len(), time.Since(start), nil)
	return newAllocator(ids, index, o), nil
}

func decodeParts[K idmap.ID, O any, V fieldindex.Value, PO Object[O, V]](data []byte, c codec.Codec) (*idmap.Map[K, V], *RecordIndex[K, O, V, PO], error) {
	raw, err := fieldindex.ParseRaw[Record[K, O, V, PO], V](data, c)
	if err != nil {
		return nil, nil, &DeserializeError{Stage: StageParse, cause: err}
	}

	ids := idmap.WithIDCapacity[K, V](len(raw.Elements))
	for i := range raw.Elements {
		rec := &raw.Elements[i]
		if idmap.IsNil(rec.ID) {
			return nil, nil, &DeserializeError{
				Stage: StageRestore,
				cause: fmt.Errorf("%w: record %d", ErrNilID, i),
			}
		}
		if _, dup := ids.InsertWithID(rec.ID, rec.FieldValue()); dup {
			return nil, nil, &DeserializeError{
				Stage: StageRestore,
				cause: fmt.Errorf("%w: %d", ErrDuplicateID, uint64(rec.ID)),
			}
		}
	}

	index, err := fieldindex.FromRaw[Record[K, O, V, PO], V, *Record[K, O, V, PO]](raw)
	if err != nil {
		return nil, nil, &DeserializeError{Stage: StageBuild, cause: err}
	}
	return ids, index, nil
}
