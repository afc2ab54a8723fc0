package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by providers when the requested object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// StorageProvider defines the behavior for any storage backend.
type StorageProvider interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Get(ctx context.Context, bucket, key string) (*FileObject, error)
	Put(ctx context.Context, bucket, key string, body io.ReadSeeker, contentType, cacheControl string) error
	Delete(ctx context.Context, bucket, key string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Presigner is implemented by backends that can hand out time-limited GET URLs.
type Presigner interface {
	PresignGet(bucket, key string, ttl time.Duration) (string, error)
}

// FileObject is the provider-agnostic representation of a file.
type FileObject struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
	LastModified  time.Time
}
