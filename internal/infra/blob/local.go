// File: internal/infra/blob/local.go
package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.BlobStore = (*LocalStore)(nil)

// LocalStore implements BlobStore on the local filesystem for development
// and tests. Objects live under baseDir/bucket/key and presigned URLs use
// the file scheme, which the fetcher understands.
type LocalStore struct {
	baseDir      string
	maxDimension int
}

func NewLocalStore(baseDir string, maxDimension int) *LocalStore {
	return &LocalStore{baseDir: baseDir, maxDimension: maxDimension}
}

func (l *LocalStore) path(bucket, key string) string {
	return filepath.Join(l.baseDir, bucket, filepath.FromSlash(key))
}

func (l *LocalStore) OptimizeAndStore(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	data, err := os.ReadFile(l.path(srcBucket, srcKey))
	if err != nil {
		return fmt.Errorf("read object %s/%s: %w", srcBucket, srcKey, err)
	}
	optimized, contentType, err := optimize(data, l.maxDimension)
	if err != nil {
		return err
	}
	return l.Put(ctx, dstBucket, dstKey, optimized, contentType)
}

func (l *LocalStore) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	data, err := os.ReadFile(l.path(srcBucket, srcKey))
	if err != nil {
		return fmt.Errorf("read object %s/%s: %w", srcBucket, srcKey, err)
	}
	return l.Put(ctx, dstBucket, dstKey, data, "")
}

func (l *LocalStore) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	path := l.path(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (l *LocalStore) Delete(_ context.Context, bucket, key string) error {
	err := os.Remove(l.path(bucket, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (l *LocalStore) PresignedDownloadURL(_ context.Context, bucket, key string) (string, error) {
	abs, err := filepath.Abs(l.path(bucket, key))
	if err != nil {
		return "", fmt.Errorf("resolve object path: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
