package extract

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/aps"
	"github.com/joseph-ayodele/takeoff-tracker/internal/bim"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// ViewerService is the part of the cloud BIM client extraction needs.
type ViewerService interface {
	Manifest(ctx context.Context, urn string) (aps.ManifestStatus, error)
	ListViews(ctx context.Context, urn string) ([]aps.View, error)
	ObjectTree(ctx context.Context, urn, guid string) ([]bim.Node, error)
	Properties(ctx context.Context, urn, guid string) ([]bim.ObjectProperties, error)
}

// ModelStore persists translation progress and the metadata cache.
type ModelStore interface {
	UpdateTranslation(ctx context.Context, id string, status constants.TranslationStatus, progress, urn string) error
	SaveMetadata(ctx context.Context, id string, md *entity.BimMetadata) error
}

// APSExtractor reads proprietary BIM formats through the cloud viewer. A
// model extracted once is served from its metadata cache afterwards, with
// template matches re-scored against the current catalogs.
type APSExtractor struct {
	viewer    ViewerService
	models    ModelStore
	mapper    *bim.Mapper
	templates TemplateProvider
	logger    *slog.Logger
	now       func() time.Time
}

func NewAPSExtractor(viewer ViewerService, models ModelStore, mapper *bim.Mapper, templates TemplateProvider, logger *slog.Logger) *APSExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = bim.NewMapper(nil, logger)
	}
	return &APSExtractor{
		viewer:    viewer,
		models:    models,
		mapper:    mapper,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

func (x *APSExtractor) Source() constants.ExtractionSource { return constants.SourceBIMAPS }

func (x *APSExtractor) Extract(ctx context.Context, in Input) (Output, error) {
	start := time.Now()
	model := in.BimModel
	if model == nil {
		return Output{}, fmt.Errorf("bim model is missing")
	}
	logger := x.logger.With("bim_model_id", model.ID)

	if cached, ok := model.CachedResult(); ok {
		res := *cached
		// re-scoring must not touch the cached items
		res.Equipment = slices.Clone(cached.Equipment)
		res.Materials = slices.Clone(cached.Materials)
		res.Normalize()
		if err := matchTemplates(ctx, x.templates, &res); err != nil {
			return Output{}, err
		}
		logger.Info("extract.aps.cache_hit", "objects", res.RawObjectCount)
		return Output{Result: &res, Summary: res.Summary, Tier: "cache", ProcessingTimeMs: time.Since(start).Milliseconds()}, nil
	}

	if x.viewer == nil {
		return Output{}, common.ConfigurationError("cloud BIM viewer is not configured")
	}
	if model.URN == "" {
		return Output{}, fmt.Errorf("bim model %s has no urn; translation never started", model.ID)
	}
	if err := x.awaitTranslation(ctx, model); err != nil {
		return Output{}, err
	}

	views, err := x.viewer.ListViews(ctx, model.URN)
	if err != nil {
		return Output{}, fmt.Errorf("list views: %w", err)
	}
	view, ok := aps.PickView(views)
	if !ok {
		return Output{}, fmt.Errorf("bim model %s has no viewable", model.ID)
	}

	var (
		tree  []bim.Node
		props []bim.ObjectProperties
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tree, err = x.viewer.ObjectTree(gctx, model.URN, view.GUID)
		if err != nil {
			return fmt.Errorf("object tree: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		props, err = x.viewer.Properties(gctx, model.URN, view.GUID)
		if err != nil {
			return fmt.Errorf("properties: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Output{}, err
	}

	templates, err := x.loadTemplates(ctx)
	if err != nil {
		return Output{}, err
	}
	res := x.mapper.Map(tree, props, templates)

	if x.models != nil {
		extractedAt := x.now().UTC()
		md := &entity.BimMetadata{ExtractedAt: &extractedAt, ViewGUID: view.GUID, Result: res}
		if err := x.models.SaveMetadata(ctx, model.ID, md); err != nil {
			logger.Warn("extract.aps.cache_write_failed", "error", err)
		}
	}

	logger.Info("extract.aps.done",
		"view_guid", view.GUID,
		"objects", res.RawObjectCount,
		"areas", len(res.Areas),
		"equipment", len(res.Equipment),
		"materials", len(res.Materials),
		"elapsed_ms", time.Since(start).Milliseconds())
	return Output{Result: res, Summary: res.Summary, Tier: "aps", ProcessingTimeMs: time.Since(start).Milliseconds()}, nil
}

// awaitTranslation checks the manifest once and records its state. An
// unfinished translation fails this run with a not-ready error.
func (x *APSExtractor) awaitTranslation(ctx context.Context, model *entity.BimModel) error {
	if model.TranslationStatus == constants.TranslationSuccess {
		return nil
	}
	m, err := x.viewer.Manifest(ctx, model.URN)
	if err != nil {
		return fmt.Errorf("translation manifest: %w", err)
	}
	status := constants.TranslationInProgress
	switch {
	case m.Succeeded():
		status = constants.TranslationSuccess
	case m.Failed():
		status = constants.TranslationFailed
	}
	if x.models != nil {
		if err := x.models.UpdateTranslation(ctx, model.ID, status, m.Progress, ""); err != nil {
			x.logger.Warn("extract.aps.translation_update_failed", "bim_model_id", model.ID, "error", err)
		}
	}
	switch status {
	case constants.TranslationSuccess:
		return nil
	case constants.TranslationFailed:
		return fmt.Errorf("translation of bim model %s failed", model.ID)
	default:
		return common.NotReady(fmt.Sprintf("bim model %s is still translating (%s)", model.ID, m.Progress))
	}
}

func (x *APSExtractor) loadTemplates(ctx context.Context) (bim.Templates, error) {
	var t bim.Templates
	if x.templates == nil {
		return t, nil
	}
	var err error
	if t.Equipment, err = x.templates.Templates(ctx, constants.TemplateEquipment); err != nil {
		return t, fmt.Errorf("load equipment templates: %w", err)
	}
	if t.Materials, err = x.templates.Templates(ctx, constants.TemplateMaterial); err != nil {
		return t, fmt.Errorf("load material templates: %w", err)
	}
	return t, nil
}

var _ ViewerService = (*aps.Client)(nil)
