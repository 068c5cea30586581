package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalService keeps images on disk. The HTTP server exposes Dir under
// BaseURL (usually /uploads).
type LocalService struct {
	Dir     string
	BaseURL string
}

func NewLocalService(dir, baseURL string) (*LocalService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalService{Dir: dir, BaseURL: baseURL}, nil
}

func (s *LocalService) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(body, size)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	return joinURL(s.BaseURL, key), nil
}

func (s *LocalService) Delete(_ context.Context, url string) error {
	key, ok := keyFromURL(s.BaseURL, url)
	if !ok {
		return nil
	}
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalService) path(key string) (string, error) {
	root := filepath.Clean(s.Dir)
	target := filepath.Join(root, filepath.FromSlash(key))
	if rel, err := filepath.Rel(root, target); err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return target, nil
}

var _ Service = (*LocalService)(nil)
