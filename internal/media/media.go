// Package media stores uploaded campaign files. Blob cleanup is always
// an explicit handler step after the database commit, never a storage
// side effect.
package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is a blob store addressed by relative slash-separated paths
type Store interface {
	Save(ctx context.Context, path string, r io.Reader) error
	Remove(ctx context.Context, path string) error
	URL(path string) string
}

// DiskStore stores blobs under a local directory
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates a disk store rooted at dir
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory blobs are stored under
func (s *DiskStore) Dir() string {
	return s.dir
}

// fullPath resolves a stored path, refusing escapes from the root
func (s *DiskStore) fullPath(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid media path %q", path)
	}
	return filepath.Join(s.dir, clean), nil
}

// Save writes a blob
func (s *DiskStore) Save(ctx context.Context, path string, r io.Reader) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create media subdirectory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("write media file: %w", err)
	}

	return f.Close()
}

// Remove deletes a blob and prunes empty parent directories
func (s *DiskStore) Remove(ctx context.Context, path string) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove media file: %w", err)
	}

	// Prune now-empty directories up to the root.
	for dir := filepath.Dir(full); dir != s.dir; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}

	return nil
}

// URL returns the public URL of a stored blob
func (s *DiskStore) URL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
