// Package s3 provides Amazon S3 implementations of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("snapshots/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	mgr := snapshot.NewManager(store)
//
// To guard CURRENT pointers against racing writers, wrap the store:
//
//	ddb := dynamodb.NewFromConfig(cfg)
//	commits := s3.NewCommitStore(store, ddb, "objalloc-commits", "s3://my-bucket/snapshots")
//
// # Features
//
//   - Range reads through blobstore.Blob
//   - CRC32C checksums on every upload
//   - Multipart uploads for payloads above the part size
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
