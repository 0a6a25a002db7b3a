// Package extract holds one extractor per document source. Every extractor
// turns its input into the same normalized entity.ExtractionResult.
package extract

import (
	"context"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// Input carries what a source needs. File sources get File and Content;
// the cloud BIM source gets BimModel.
type Input struct {
	Extraction *entity.Extraction
	File       *entity.StoredFile
	Content    []byte
	BimModel   *entity.BimModel
	Language   string
}

// Output is a successful extraction.
type Output struct {
	Result           *entity.ExtractionResult
	Summary          map[string]any
	Tier             string
	ProcessingTimeMs int64
}

// Extractor produces a normalized result for one source.
type Extractor interface {
	Source() constants.ExtractionSource
	Extract(ctx context.Context, in Input) (Output, error)
}

// TemplateProvider supplies template catalogs for matching.
type TemplateProvider interface {
	Templates(ctx context.Context, kind constants.TemplateKind) ([]entity.Template, error)
}

func filename(in Input) string {
	if in.File != nil {
		return in.File.Filename
	}
	return ""
}
