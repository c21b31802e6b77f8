// Package gcs stores page snapshots in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the destination bucket.
type Config struct {
	Bucket string
}

// Store uploads snapshots as objects of one bucket.
type Store struct {
	bucket string
	open   func(ctx context.Context, object, contentType string) io.WriteCloser
}

// New binds a Store to cfg.Bucket on client.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("gcs client is required")
	}
	return newStore(cfg.Bucket, func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(cfg.Bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	})
}

func newStore(bucket string, open func(context.Context, string, string) io.WriteCloser) (*Store, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	return &Store{bucket: bucket, open: open}, nil
}

// PutObject writes data under path and returns its gs:// URI. The writer is
// closed even when Write fails.
func (s *Store) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("snapshot path is required")
	}
	w := s.open(ctx, path, contentType)
	_, werr := w.Write(data)
	cerr := w.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return "", fmt.Errorf("upload gs://%s/%s: %w", s.bucket, path, err)
	}
	return "gs://" + s.bucket + "/" + path, nil
}
