// Package minio provides a blobstore.Store backed by the MinIO client.
//
// It works against MinIO itself and other S3-compatible systems (Ceph,
// SeaweedFS, Garage) without pulling in the AWS SDK.
//
//	store, err := minio.New(minio.Config{
//	    Endpoint:  "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	}, "objalloc", "snapshots/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := store.EnsureBucket(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	mgr := snapshot.NewManager(store)
package minio
