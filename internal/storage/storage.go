package storage

import (
	"context"
	"io"

	"looplib/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
)

// Client binds a StorageProvider to the audio bucket and its URL policy.
type Client struct {
	backend StorageProvider
	bucket  string
	urls    URLPolicy
}

func New(cfg *config.Config) *Client {
	var backend StorageProvider

	if cfg.Storage.Provider == "local" {
		backend = NewLocalProvider(cfg.Storage.LocalStorage)
	} else {
		s3Config := &aws.Config{
			Credentials: credentials.NewStaticCredentials(cfg.Storage.KeyID, cfg.Storage.AppKey, ""),
			Region:      aws.String(cfg.Storage.Region),
		}
		// Custom endpoints (MinIO, B2) need path-style addressing.
		if cfg.Storage.Endpoint != "" {
			s3Config.Endpoint = aws.String(cfg.Storage.Endpoint)
			s3Config.S3ForcePathStyle = aws.Bool(true)
		}
		sess := session.Must(session.NewSession(s3Config))
		backend = NewS3Provider(sess)
	}

	return NewWithProvider(backend, cfg.Storage.Bucket, URLPolicy{
		Mode:          URLMode(cfg.Storage.URLMode),
		Region:        cfg.Storage.Region,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
		PresignTTL:    cfg.Storage.PresignTTL,
	})
}

func NewWithProvider(backend StorageProvider, bucket string, urls URLPolicy) *Client {
	return &Client{
		backend: backend,
		bucket:  bucket,
		urls:    urls,
	}
}

func (c *Client) Bucket() string {
	return c.bucket
}

// List returns every key under prefix, across all listing pages.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	return c.backend.List(ctx, c.bucket, prefix)
}

func (c *Client) Download(ctx context.Context, key string) (*FileObject, error) {
	return c.backend.Get(ctx, c.bucket, key)
}

func (c *Client) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType, cacheControl string) error {
	return c.backend.Put(ctx, c.bucket, key, body, contentType, cacheControl)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, c.bucket, key)
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	return c.backend.Exists(ctx, c.bucket, key)
}
