package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewGCS builds a client from application default credentials. Extra options
// (endpoint, credentials) are passed through for non-default setups.
func NewGCS(ctx context.Context, bucket string, logger *slog.Logger, opts ...option.ClientOption) (*GCS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is empty")
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, logger: logger.With("backend", "gcs", "bucket", bucket)}, nil
}

func (g *GCS) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	k, err := cleanKey(key)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(k).NewWriter(ctx)
	w.ContentType = constants.MimeTypeFor(k)
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	g.logger.Debug("storage.save", "key", k, "size_bytes", n)
	return n, nil
}

func (g *GCS) Read(ctx context.Context, key string) ([]byte, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := g.client.Bucket(g.bucket).Object(k).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object %q: %w", k, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err = g.client.Bucket(g.bucket).Object(k).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", k, g.bucket, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
