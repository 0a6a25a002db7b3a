package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/raster"
)

// ImagePlanExtractor reads scanned floor plans through the raster engine.
// There is no fallback when the engine is missing.
type ImagePlanExtractor struct {
	engine raster.Engine
	logger *slog.Logger
}

func NewImagePlanExtractor(engine raster.Engine, logger *slog.Logger) *ImagePlanExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImagePlanExtractor{engine: engine, logger: logger}
}

func (x *ImagePlanExtractor) Source() constants.ExtractionSource { return constants.SourceImagePlan }

func (x *ImagePlanExtractor) Extract(ctx context.Context, in Input) (Output, error) {
	if x.engine == nil || !x.engine.Available() {
		return Output{}, common.ConfigurationError("raster engine is not available")
	}
	r, err := x.engine.Extract(ctx, in.Content, filename(in))
	if err != nil {
		return Output{}, err
	}
	res := entity.NewExtractionResult()
	res.Floors = r.Floors
	if r.Summary != nil {
		res.Summary = r.Summary
	}
	res.Normalize()
	addFloorTotals(res)

	tier := r.Tier
	if tier == "" {
		tier = "raster"
	}
	return Output{Result: res, Summary: res.Summary, Tier: tier, ProcessingTimeMs: r.ProcessingTimeMs}, nil
}
