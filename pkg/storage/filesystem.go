package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage persists files on disk under a base directory, one sub-directory per bucket.
type LocalStorage struct {
	baseDir   string
	publicURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
// publicURL is the absolute URL prefix the base directory is served under.
func NewLocalStorage(baseDir, publicURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Put copies the object body to <base>/<bucket>/<key>, replacing any existing file.
func (s *LocalStorage) Put(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := s.resolve(obj.Bucket, obj.Key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create stored file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, obj.Body); err != nil {
		return "", fmt.Errorf("write stored file: %w", err)
	}
	return s.PublicURL(obj.Bucket, obj.Key), nil
}

// PublicURL builds the URL a stored object is reachable at.
func (s *LocalStorage) PublicURL(bucket, key string) string {
	escaped := make([]string, 0, 2)
	for _, part := range strings.Split(path.Join(bucket, key), "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return s.publicURL + "/" + strings.Join(escaped, "/")
}

// Dir exposes the base directory so it can be mounted as a static file root.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) resolve(bucket, key string) (string, error) {
	rel := filepath.Clean(filepath.Join(bucket, filepath.FromSlash(key)))
	if bucket == "" || key == "" || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object path %q", path.Join(bucket, key))
	}
	return filepath.Join(s.baseDir, rel), nil
}
