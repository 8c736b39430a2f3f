package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the connection settings for the MinIO/S3 backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// BaseURL is the public base URL objects are reachable at
	// (typically a CDN or the bucket website endpoint).
	BaseURL string
}

// MinioStore implements Store on a MinIO/S3 bucket, for deployments
// where the paste host and the bot run on different machines.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinio creates a MinIO-backed store and ensures the bucket exists.
func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

func objectName(path string) string {
	return strings.TrimPrefix(path, "/")
}

// Exists reports whether an object is present at path.
func (s *MinioStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectName(path), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}

// Put streams the full content to path. S3 puts are atomic: the object
// only becomes visible once the upload completes.
func (s *MinioStore) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	info, err := s.client.PutObject(ctx, s.bucket, objectName(path), r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upload %s: %w", path, err)
	}
	return info.Size, nil
}

// List returns all stored object paths, excluding the protected set.
func (s *MinioStore) List(ctx context.Context) ([]string, error) {
	var paths []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list store: %w", object.Err)
		}
		if ProtectedNames[object.Key] {
			continue
		}
		paths = append(paths, "/"+object.Key)
	}
	return paths, nil
}

// Remove deletes the object at path.
func (s *MinioStore) Remove(ctx context.Context, path string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName(path), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// URL returns the public URL for a stored path.
func (s *MinioStore) URL(path string) string {
	return s.baseURL + path
}

// Close is a no-op; the MinIO client holds no persistent connection.
func (s *MinioStore) Close() error {
	return nil
}
