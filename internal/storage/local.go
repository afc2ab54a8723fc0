package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type LocalProvider struct {
	// RootPath is the directory where buckets are simulated (e.g., "./data")
	RootPath string
}

func NewLocalProvider(root string) *LocalProvider {
	_ = os.MkdirAll(root, 0755)
	return &LocalProvider{RootPath: root}
}

// List walks the bucket directory and returns S3-style keys in lexical order,
// which is the order S3 itself lists in.
func (l *LocalProvider) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	bucketPath := filepath.Join(l.RootPath, bucket)

	err := filepath.Walk(bucketPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == bucketPath {
				return filepath.SkipDir
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() {
			return nil
		}

		rel, _ := filepath.Rel(bucketPath, path)
		key := filepath.ToSlash(rel)

		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})

	sort.Strings(keys)
	return keys, err
}

func (l *LocalProvider) Get(ctx context.Context, bucket, key string) (*FileObject, error) {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &FileObject{
		Body:          f,
		ContentLength: stat.Size(),
		ContentType:   contentType,
		LastModified:  stat.ModTime(),
	}, nil
}

func (l *LocalProvider) Put(ctx context.Context, bucket, key string, body io.ReadSeeker, contentType, cacheControl string) error {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, body)
	return err
}

func (l *LocalProvider) Delete(ctx context.Context, bucket, key string) error {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return err
	}
	// S3 deletes are idempotent.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LocalProvider) Exists(ctx context.Context, bucket, key string) (bool, error) {
	path, err := l.objectPath(bucket, key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// objectPath keeps keys inside the bucket directory.
func (l *LocalProvider) objectPath(bucket, key string) (string, error) {
	bucketPath := filepath.Join(l.RootPath, bucket)
	path := filepath.Join(bucketPath, filepath.FromSlash(key))
	if path != bucketPath && !strings.HasPrefix(path, bucketPath+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: key %q escapes bucket", key)
	}
	return path, nil
}
