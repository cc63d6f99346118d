package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalBackend stores objects as files under <baseDir>/<bucket>/<key>.
// URLs are the paths the HTTP layer serves under /files/; local files need
// no signing, so signed URLs degrade to the served path.
type LocalBackend struct {
	baseDir string
}

func NewLocalBackend(baseDir string) *LocalBackend {
	return &LocalBackend{baseDir: baseDir}
}

func (b *LocalBackend) objectPath(bucket, key string) string {
	return filepath.Join(b.baseDir, bucket, filepath.FromSlash(key))
}

func (b *LocalBackend) Upload(_ context.Context, bucket, key string, data []byte, _ string) error {
	path := b.objectPath(bucket, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create bucket dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (b *LocalBackend) PublicURL(bucket, key string) string {
	return "/files/" + bucket + "/" + key
}

func (b *LocalBackend) SignedURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	if _, err := os.Stat(b.objectPath(bucket, key)); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return b.PublicURL(bucket, key), nil
}

func (b *LocalBackend) Remove(_ context.Context, bucket, key string) error {
	if err := os.Remove(b.objectPath(bucket, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// FilesRoot is the directory the HTTP layer serves under /files/.
func (b *LocalBackend) FilesRoot() string {
	return b.baseDir
}
