package snapshot

import "errors"

var (
	// ErrCorrupt is returned when a frame is truncated or fails its checksum.
	ErrCorrupt = errors.New("snapshot: corrupt frame")

	// ErrIncompatibleFormat is returned for frames this build cannot read:
	// foreign magic, newer version, unknown compression or codec.
	ErrIncompatibleFormat = errors.New("snapshot: incompatible format")

	// ErrInvalidName is returned for snapshot names that cannot be used as a
	// blob prefix.
	ErrInvalidName = errors.New("snapshot: invalid name")
)
