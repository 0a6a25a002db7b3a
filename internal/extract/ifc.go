package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/ifc"
	"github.com/joseph-ayodele/takeoff-tracker/internal/matching"
)

// IFCExtractor parses IFC files locally; no remote service is involved.
type IFCExtractor struct {
	templates TemplateProvider
	logger    *slog.Logger
}

func NewIFCExtractor(templates TemplateProvider, logger *slog.Logger) *IFCExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &IFCExtractor{templates: templates, logger: logger}
}

func (x *IFCExtractor) Source() constants.ExtractionSource { return constants.SourceBIMIFC }

func (x *IFCExtractor) Extract(ctx context.Context, in Input) (Output, error) {
	start := time.Now()
	model, err := ifc.Parse(in.Content)
	if err != nil {
		return Output{}, fmt.Errorf("parse ifc %q: %w", filename(in), err)
	}
	res := ifc.Extract(model)
	if err := matchTemplates(ctx, x.templates, res); err != nil {
		return Output{}, err
	}
	x.logger.Info("extract.ifc.done",
		"objects", res.RawObjectCount,
		"areas", len(res.Areas),
		"equipment", len(res.Equipment),
		"materials", len(res.Materials))
	return Output{Result: res, Summary: res.Summary, Tier: "ifc", ProcessingTimeMs: time.Since(start).Milliseconds()}, nil
}

// matchTemplates scores equipment and materials against the current
// catalogs. A nil provider leaves items unmatched.
func matchTemplates(ctx context.Context, templates TemplateProvider, res *entity.ExtractionResult) error {
	if templates == nil {
		return nil
	}
	if len(res.Equipment) > 0 {
		eq, err := templates.Templates(ctx, constants.TemplateEquipment)
		if err != nil {
			return fmt.Errorf("load equipment templates: %w", err)
		}
		matching.MatchEquipment(res.Equipment, eq)
	}
	if len(res.Materials) > 0 {
		mat, err := templates.Templates(ctx, constants.TemplateMaterial)
		if err != nil {
			return fmt.Errorf("load material templates: %w", err)
		}
		matching.MatchMaterials(res.Materials, mat)
	}
	return nil
}
