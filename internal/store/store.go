// Package store provides the content store backing public paste URLs.
// Supports a local directory backend and a MinIO/S3 backend.
package store

import (
	"context"
	"io"
)

// Backend type constants.
const (
	TypeLocal = "local"
	TypeMinio = "minio"
)

// ProtectedNames are root objects that must never be listed as
// deletable candidates: the index page, the README, and the
// persistence marker used by deployment tooling.
var ProtectedNames = map[string]bool{
	"index.html": true,
	"README.md":  true,
	".keep":      true,
}

// Store is the durable storage for uploaded objects. Object paths are
// storage-relative and always begin with "/". Implementations must be
// safe for concurrent use.
type Store interface {
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Put writes the full content to path and returns the byte count.
	// The write completes before Put returns; a partially written
	// object is never observable at the path.
	Put(ctx context.Context, path string, r io.Reader) (int64, error)

	// List returns the paths of all stored objects, excluding the
	// protected set.
	List(ctx context.Context) ([]string, error)

	// Remove deletes the object at path.
	Remove(ctx context.Context, path string) error

	// URL returns the public URL for a stored path.
	URL(path string) string

	// Close releases any resources held by the store.
	Close() error
}
