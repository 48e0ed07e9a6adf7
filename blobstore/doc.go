// Package blobstore provides the storage abstraction snapshots are written
// to.
//
// Store is the interface for reading and writing blobs. Implementations must
// be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral use
//   - LocalStore: local filesystem with atomic temp-file-and-rename writes
//   - s3.Store: Amazon S3 with range reads, checksummed and multipart uploads
//   - s3.CommitStore: S3 plus DynamoDB conditional writes for CURRENT pointers
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Open must return an error matching ErrNotFound for a missing blob.
package blobstore
