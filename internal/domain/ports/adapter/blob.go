package adapter

import "context"

// BlobStore is the port for object storage. Keys are opaque paths within a
// bucket; Delete of a missing object is not an error.
type BlobStore interface {
	// OptimizeAndStore reads the source image, re-encodes it (downscaling
	// when it exceeds the configured dimension cap), and writes the result
	// to the destination.
	OptimizeAndStore(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Delete(ctx context.Context, bucket, key string) error
	// PresignedDownloadURL returns a time-limited URL an external provider
	// can fetch the object from.
	PresignedDownloadURL(ctx context.Context, bucket, key string) (string, error)
}

// KeyStrategy derives the object keys for each pipeline stage, keeping the
// layout in one place.
type KeyStrategy interface {
	UploadKey(userID, jobID, fileName string) string
	OptimizedKey(userID, jobID, fileName string) string
	FinalKey(userID, jobID, fileName string) string
}
