package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements Store on a flat local directory. This is the
// backend the public HTTP server serves files from.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocal creates a local store rooted at dir. The directory must
// already exist; startup validation owns that check.
func NewLocal(dir, baseURL string) *LocalStore {
	return &LocalStore{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Root returns the store's directory, for the static file server.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) filePath(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
}

// Exists reports whether an object is present at path.
func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.filePath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// Put writes the full content to path. The content lands in a temp
// file first and is renamed into place, so a URL never exposes a
// partial object. O_EXCL on the temp file also closes the
// check-then-create window for local disk.
func (s *LocalStore) Put(_ context.Context, path string, r io.Reader) (int64, error) {
	dst := s.filePath(path)

	tmp, err := os.OpenFile(dst+".part", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	return n, nil
}

// List returns all stored object paths, excluding the protected set
// and in-progress temp files.
func (s *LocalStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || ProtectedNames[e.Name()] || strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		paths = append(paths, "/"+e.Name())
	}
	return paths, nil
}

// Remove deletes the object at path.
func (s *LocalStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(s.filePath(path)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// URL returns the public URL for a stored path.
func (s *LocalStore) URL(path string) string {
	return s.baseURL + path
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}
