// Package hash provides the checksums used for snapshot integrity.
//
// Snapshot frames carry a CRC32-Castagnoli (CRC32C) checksum of their
// payload, and the S3 backend sends the same checksum with every upload so
// the service can verify it on arrival.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
//
// Go's crc32 package uses hardware instructions (SSE4.2, ARM CRC) when
// available.
package hash
