// Package importer copies selected extracted items into a project's domain
// tables, skipping names the project already has.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
)

// Request selects what to import. Floor sources use FloorIndices and BIM
// sources use ObjectIDs; an empty selection means everything.
type Request struct {
	ExtractionID string
	FloorIndices []int
	ObjectIDs    []string
	Actor        string
}

// Result is what one import call did. It mirrors the manifest written.
type Result struct {
	ManifestID string
	Imported   int
	Skipped    int
	CreatedIDs []string
}

// Engine performs imports. Every call writes exactly one manifest in the
// same transaction as its rows.
type Engine struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

func NewEngine(repos *repository.Repositories, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{repos: repos, logger: logger}
}

// batch tracks one import: existing names are loaded once and grown as rows
// are inserted, so duplicates inside the batch are skipped too.
type batch struct {
	extraction *entity.Extraction
	names      map[string]string
	actor      string
	result     Result
}

func nameKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (b *batch) exists(name string) bool {
	_, ok := b.names[nameKey(name)]
	return ok
}

func (b *batch) created(name, id string) {
	b.names[nameKey(name)] = id
	b.result.Imported++
	b.result.CreatedIDs = append(b.result.CreatedIDs, id)
}

func (b *batch) source() *string { return &b.extraction.ID }

// ImportAreas imports floors and rooms from PDF or image extractions, or
// spaces from BIM extractions.
func (e *Engine) ImportAreas(ctx context.Context, req Request) (Result, error) {
	return e.run(ctx, req, constants.EntityArea,
		func(ctx context.Context, tx *repository.Repositories, projectID string) (map[string]string, error) {
			return tx.ProjectRows.AreaNames(ctx, projectID)
		},
		func(ctx context.Context, tx *repository.Repositories, b *batch, req Request) error {
			if b.extraction.Source.IsBIM() {
				return importBIMAreas(ctx, tx, b, req.ObjectIDs)
			}
			return importFloors(ctx, tx, b, req.FloorIndices)
		})
}

// ImportEquipment imports equipment items by object id.
func (e *Engine) ImportEquipment(ctx context.Context, req Request) (Result, error) {
	return e.run(ctx, req, constants.EntityEquipment,
		func(ctx context.Context, tx *repository.Repositories, projectID string) (map[string]string, error) {
			return tx.ProjectRows.EquipmentNames(ctx, projectID)
		},
		func(ctx context.Context, tx *repository.Repositories, b *batch, req Request) error {
			items := b.extraction.ExtractedData.Equipment
			byID := make(map[string]int, len(items))
			for i, it := range items {
				byID[it.ID] = i
			}
			return eachSelected(req.ObjectIDs, len(items), byID, b, func(i int) (string, error) {
				it := items[i]
				if b.exists(it.Name) {
					return "", nil
				}
				row := &entity.Equipment{
					ProjectID:          b.extraction.ProjectID,
					Name:               strings.TrimSpace(it.Name),
					EquipmentType:      it.Type,
					Category:           it.Category,
					Manufacturer:       it.Manufacturer,
					Model:              it.Model,
					Level:              it.Level,
					TemplateID:         it.MatchedTemplateID,
					SourceExtractionID: b.source(),
					CreatedBy:          b.actor,
				}
				if err := tx.ProjectRows.InsertEquipment(ctx, row); err != nil {
					return "", err
				}
				return row.ID, nil
			}, func(i int) string { return items[i].Name })
		})
}

// ImportMaterials imports material items by object id.
func (e *Engine) ImportMaterials(ctx context.Context, req Request) (Result, error) {
	return e.run(ctx, req, constants.EntityMaterial,
		func(ctx context.Context, tx *repository.Repositories, projectID string) (map[string]string, error) {
			return tx.ProjectRows.MaterialNames(ctx, projectID)
		},
		func(ctx context.Context, tx *repository.Repositories, b *batch, req Request) error {
			items := b.extraction.ExtractedData.Materials
			byID := make(map[string]int, len(items))
			for i, it := range items {
				byID[it.ID] = i
			}
			return eachSelected(req.ObjectIDs, len(items), byID, b, func(i int) (string, error) {
				it := items[i]
				if b.exists(it.Name) {
					return "", nil
				}
				row := &entity.Material{
					ProjectID:          b.extraction.ProjectID,
					Name:               strings.TrimSpace(it.Name),
					MaterialType:       it.Type,
					Category:           it.Category,
					Level:              it.Level,
					TemplateID:         it.MatchedTemplateID,
					SourceExtractionID: b.source(),
					CreatedBy:          b.actor,
				}
				if err := tx.ProjectRows.InsertMaterial(ctx, row); err != nil {
					return "", err
				}
				return row.ID, nil
			}, func(i int) string { return items[i].Name })
		})
}

type loadNames func(ctx context.Context, tx *repository.Repositories, projectID string) (map[string]string, error)

type importFn func(ctx context.Context, tx *repository.Repositories, b *batch, req Request) error

func (e *Engine) run(ctx context.Context, req Request, kind constants.EntityType, load loadNames, fn importFn) (Result, error) {
	if err := common.NewValidator().Field("extraction_id", req.ExtractionID, common.Required).Err(); err != nil {
		return Result{}, err
	}
	ex, err := e.repos.Extractions.GetByID(ctx, req.ExtractionID)
	if err != nil {
		return Result{}, err
	}
	if ex.Status != constants.StatusCompleted {
		return Result{}, common.NotReady(fmt.Sprintf("extraction %s is %s; only completed extractions can be imported", ex.ID, ex.Status))
	}
	if ex.ExtractedData == nil {
		ex.ExtractedData = entity.NewExtractionResult()
	}
	actor := req.Actor
	if actor == "" {
		actor = common.ActorFromContext(ctx)
	}
	logger := common.LoggerFrom(ctx, e.logger).With("extraction_id", ex.ID, "entity_type", kind)

	b := &batch{extraction: ex, actor: actor}
	err = e.repos.InTx(ctx, func(tx *repository.Repositories) error {
		names, err := load(ctx, tx, ex.ProjectID)
		if err != nil {
			return err
		}
		b.names = names
		if err := fn(ctx, tx, b, req); err != nil {
			return err
		}
		m := &entity.ImportManifest{
			ExtractionID:  ex.ID,
			ProjectID:     ex.ProjectID,
			EntityType:    kind,
			ImportedCount: b.result.Imported,
			SkippedCount:  b.result.Skipped,
			CreatedIDs:    b.result.CreatedIDs,
			Actor:         actor,
		}
		if err := tx.Manifests.Create(ctx, m); err != nil {
			return err
		}
		b.result.ManifestID = m.ID
		return nil
	})
	if err != nil {
		logger.Error("import.failed", "error", err)
		return Result{}, err
	}
	if b.result.CreatedIDs == nil {
		b.result.CreatedIDs = []string{}
	}
	logger.Info("import.done",
		"manifest_id", b.result.ManifestID,
		"imported", b.result.Imported,
		"skipped", b.result.Skipped)
	return b.result, nil
}

// eachSelected visits the requested ids (all items when none are given).
// insert returns an empty id when the item collides with an existing name.
func eachSelected(ids []string, n int, byID map[string]int, b *batch, insert func(i int) (string, error), name func(i int) string) error {
	visit := func(i int) error {
		id, err := insert(i)
		if err != nil {
			return err
		}
		if id == "" {
			b.result.Skipped++
			return nil
		}
		b.created(name(i), id)
		return nil
	}
	if len(ids) == 0 {
		for i := 0; i < n; i++ {
			if err := visit(i); err != nil {
				return err
			}
		}
		return nil
	}
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			b.result.Skipped++
			continue
		}
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

func importBIMAreas(ctx context.Context, tx *repository.Repositories, b *batch, ids []string) error {
	items := b.extraction.ExtractedData.Areas
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}
	return eachSelected(ids, len(items), byID, b, func(i int) (string, error) {
		it := items[i]
		if b.exists(it.Name) {
			return "", nil
		}
		row := &entity.Area{
			ProjectID:          b.extraction.ProjectID,
			Name:               strings.TrimSpace(it.Name),
			AreaType:           constants.AreaSpace,
			FloorNumber:        it.FloorNumber,
			AreaSqm:            it.AreaSqm,
			SourceExtractionID: b.source(),
			CreatedBy:          b.actor,
		}
		if err := tx.ProjectRows.InsertArea(ctx, row); err != nil {
			return "", err
		}
		return row.ID, nil
	}, func(i int) string { return items[i].Name })
}

// importFloors reuses or creates a floor area per selected floor and adds
// its rooms underneath. Only floor areas are reused as parents; a room that
// shares a floor's name does not stand in for it. Out-of-range indices are
// ignored.
func importFloors(ctx context.Context, tx *repository.Repositories, b *batch, indices []int) error {
	floorIDs, err := tx.ProjectRows.FloorNames(ctx, b.extraction.ProjectID)
	if err != nil {
		return err
	}
	floors := b.extraction.ExtractedData.Floors
	if len(indices) == 0 {
		indices = make([]int, len(floors))
		for i := range floors {
			indices[i] = i
		}
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(floors) {
			continue
		}
		floor := floors[idx]
		parentID, ok := floorIDs[nameKey(floor.Name)]
		if !ok {
			row := &entity.Area{
				ProjectID:          b.extraction.ProjectID,
				Name:               strings.TrimSpace(floor.Name),
				AreaType:           constants.AreaFloor,
				FloorNumber:        floor.FloorNumber,
				AreaSqm:            floor.TotalArea,
				SourceExtractionID: b.source(),
				CreatedBy:          b.actor,
			}
			if err := tx.ProjectRows.InsertArea(ctx, row); err != nil {
				return err
			}
			b.created(floor.Name, row.ID)
			floorIDs[nameKey(floor.Name)] = row.ID
			parentID = row.ID
		}
		for _, room := range floor.Rooms {
			if b.exists(room.Name) {
				b.result.Skipped++
				continue
			}
			row := &entity.Area{
				ProjectID:          b.extraction.ProjectID,
				Name:               strings.TrimSpace(room.Name),
				AreaType:           constants.AreaRoom,
				ParentID:           &parentID,
				FloorNumber:        floor.FloorNumber,
				AreaSqm:            room.Area,
				SourceExtractionID: b.source(),
				CreatedBy:          b.actor,
			}
			if err := tx.ProjectRows.InsertArea(ctx, row); err != nil {
				return err
			}
			b.created(room.Name, row.ID)
		}
	}
	return nil
}
