// Package storage holds uploaded document bytes. Paths are slash-separated
// keys such as "<project_id>/<uuid>.pdf".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
)

// ByteStore persists raw document bytes.
type ByteStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Read(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ErrObjectNotFound is returned by Read and Delete for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// TryDelete removes key and only logs on failure. Callers use it where losing
// the bytes must never fail the surrounding operation.
func TryDelete(ctx context.Context, store ByteStore, key string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil || key == "" {
		return
	}
	if err := store.Delete(ctx, key); err != nil {
		logger.Warn("storage.delete.failed", "key", key, "error", err)
		return
	}
	logger.Debug("storage.delete.ok", "key", key)
}

// Key builds the storage key for an uploaded file.
func Key(projectID, id, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return path.Join(projectID, id)
	}
	return path.Join(projectID, id+"."+ext)
}

func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimSpace(key))
	if k == "." || k == "" || strings.HasPrefix(k, "/") || strings.HasPrefix(k, "..") {
		return "", common.InvalidInput(fmt.Sprintf("invalid storage key %q", key))
	}
	return k, nil
}

// Config selects a backend.
type Config struct {
	Backend   string // "local" | "gcs"
	LocalRoot string
	GCSBucket string
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (ByteStore, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(cfg.LocalRoot, logger)
	case "gcs":
		return NewGCS(ctx, cfg.GCSBucket, logger)
	default:
		return nil, common.ConfigurationError(fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}
