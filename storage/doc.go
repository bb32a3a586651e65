// Package storage provides the blob storage abstraction datasets are
// written to, with pluggable backends registered by provider name.
//
// # Backends
//
//   - storage/local: filesystem directories; implements Namespacer
//   - storage/s3: Amazon S3 and S3-compatible services such as MinIO
//
// # Configuration
//
//	storage:
//	  provider: "s3"
//	  bucket: "datasets"
//	  endpoint: "http://localhost:9000"
package storage
