package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Identifiers encode as bare unsigned integers and span/unit values as JSON
// numbers. Object types must round-trip through encoding/json.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used when none is configured.
//
// NOTE: Snapshots are self-describing, so changing Default never breaks
// loading of frames written with another codec.
var Default Codec = GoJSON{}
