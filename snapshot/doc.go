// Package snapshot persists allocators to a blobstore.Store.
//
// Each save writes one self-describing frame:
//
//	Magic        4 bytes  "OALC"
//	Version      2 bytes
//	Compression  1 byte   none, lz4 or zstd
//	CodecLen     1 byte
//	Codec        CodecLen bytes, e.g. "go-json"
//	PayloadLen   8 bytes
//	Checksum     4 bytes  CRC32C of the stored payload
//	Payload      the allocator's Encode output, compressed
//
// and then moves the snapshot's CURRENT pointer to it. Integers are
// little-endian. Load follows CURRENT, verifies the frame and decodes it with
// the codec the frame names.
//
//	m := snapshot.NewManager(blobstore.NewLocalStore("/var/lib/app"),
//	    snapshot.WithCompression(snapshot.CompressionZSTD),
//	    snapshot.WithKeepVersions(3),
//	)
//	if _, err := m.Save(ctx, "sprites", alloc); err != nil {
//	    return err
//	}
//
//	var restored objalloc.Allocator[idmap.DefaultID, Sprite, int32, *Sprite]
//	if _, err := m.Load(ctx, "sprites", &restored); err != nil {
//	    return err
//	}
//
// On S3, wrap the store in s3.CommitStore so concurrent writers cannot
// overwrite each other's CURRENT.
package snapshot
