// Package ingest uploads every supported document under a directory.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/pipeline"
)

// Uploader stores one document and creates its extraction.
type Uploader interface {
	Upload(ctx context.Context, req pipeline.UploadRequest) (*entity.Extraction, error)
}

type Options struct {
	ProjectID  string
	Language   string
	Actor      string
	Recursive  bool
	SkipHidden bool
	// OnUploaded is called for each created extraction, e.g. to queue it.
	OnUploaded func(ctx context.Context, e *entity.Extraction) error
}

type FileResult struct {
	Path         string
	ExtractionID string
	Source       constants.ExtractionSource
	Err          string
}

type DirStats struct {
	Scanned     int
	Unsupported int
	Succeeded   int
	Failed      int
}

// IngestDirectory walks root and uploads each file with a supported
// extension. Per-file failures are recorded and the walk continues.
func IngestDirectory(ctx context.Context, up Uploader, root string, opts Options, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInput("root path is required")
	}

	var (
		results []FileResult
		stats   DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if path != root && opts.SkipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		stats.Scanned++
		source, err := constants.ClassifyFilename(d.Name())
		if err != nil {
			stats.Unsupported++
			logger.Debug("ingest.skip.unsupported", "path", path)
			return nil
		}

		res := FileResult{Path: path, Source: source}
		e, err := uploadPath(ctx, up, path, opts)
		if err == nil && opts.OnUploaded != nil {
			err = opts.OnUploaded(ctx, e)
		}
		if e != nil {
			res.ExtractionID = e.ID
		}
		if err != nil {
			logger.Error("ingest.file.failed", "path", path, "error", err)
			res.Err = err.Error()
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		results = append(results, res)
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk %s: %w", root, err)
	}
	logger.Info("ingest.dir.done",
		"root", root,
		"scanned", stats.Scanned,
		"succeeded", stats.Succeeded,
		"unsupported", stats.Unsupported,
		"failed", stats.Failed)
	return results, stats, nil
}

func uploadPath(ctx context.Context, up Uploader, path string, opts Options) (*entity.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return up.Upload(ctx, pipeline.UploadRequest{
		ProjectID: opts.ProjectID,
		Filename:  filepath.Base(path),
		Body:      f,
		Language:  opts.Language,
		Actor:     opts.Actor,
	})
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
