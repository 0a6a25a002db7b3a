package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// ProjectRowRepository writes the project domain tables an import targets.
// Name lookups return lowercased names for case-insensitive dedup.
type ProjectRowRepository interface {
	AreaNames(ctx context.Context, projectID string) (map[string]string, error)
	FloorNames(ctx context.Context, projectID string) (map[string]string, error)
	EquipmentNames(ctx context.Context, projectID string) (map[string]string, error)
	MaterialNames(ctx context.Context, projectID string) (map[string]string, error)
	InsertArea(ctx context.Context, a *entity.Area) error
	InsertEquipment(ctx context.Context, e *entity.Equipment) error
	InsertMaterial(ctx context.Context, m *entity.Material) error
	ListAreas(ctx context.Context, projectID string) ([]entity.Area, error)
}

type projectRowRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewProjectRowRepository(db *DB, logger *slog.Logger) ProjectRowRepository {
	return newProjectRowRepo(db.conn(), logger)
}

func newProjectRowRepo(c conn, logger *slog.Logger) *projectRowRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &projectRowRepo{conn: c, logger: logger}
}

func (r *projectRowRepo) AreaNames(ctx context.Context, projectID string) (map[string]string, error) {
	return r.names(ctx, "areas", projectID)
}

// FloorNames is AreaNames restricted to floor areas.
func (r *projectRowRepo) FloorNames(ctx context.Context, projectID string) (map[string]string, error) {
	return r.names(ctx, "areas", projectID, entsql.EQ("area_type", string(constants.AreaFloor)))
}

func (r *projectRowRepo) EquipmentNames(ctx context.Context, projectID string) (map[string]string, error) {
	return r.names(ctx, "equipment", projectID)
}

func (r *projectRowRepo) MaterialNames(ctx context.Context, projectID string) (map[string]string, error) {
	return r.names(ctx, "materials", projectID)
}

// names maps lowercased, trimmed name to row id.
func (r *projectRowRepo) names(ctx context.Context, table, projectID string, preds ...*entsql.Predicate) (map[string]string, error) {
	b := r.conn.sql()
	q := b.Select("id", "name").From(b.Table(table)).Where(entsql.And(append([]*entsql.Predicate{entsql.EQ("project_id", projectID)}, preds...)...))
	out := make(map[string]string)
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := out[key]; !ok {
			out[key] = id
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to load existing names", "table", table, "project_id", projectID, "error", err)
		return nil, dbError("load "+table+" names", err)
	}
	return out, nil
}

func (r *projectRowRepo) InsertArea(ctx context.Context, a *entity.Area) error {
	stamp(&a.ID, &a.CreatedAt)
	b := r.conn.sql().Insert("areas").
		Columns("id", "project_id", "name", "area_type", "parent_id", "floor_number", "area_sqm",
			"source_extraction_id", "created_by", "created_at").
		Values(a.ID, a.ProjectID, a.Name, string(a.AreaType), nullable(a.ParentID), nullable(a.FloorNumber),
			nullable(a.AreaSqm), nullable(a.SourceExtractionID), a.CreatedBy, a.CreatedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		return dbError("insert area", err)
	}
	return nil
}

func (r *projectRowRepo) InsertEquipment(ctx context.Context, e *entity.Equipment) error {
	stamp(&e.ID, &e.CreatedAt)
	b := r.conn.sql().Insert("equipment").
		Columns("id", "project_id", "name", "equipment_type", "category", "manufacturer", "model", "level",
			"template_id", "source_extraction_id", "created_by", "created_at").
		Values(e.ID, e.ProjectID, e.Name, e.EquipmentType, e.Category, e.Manufacturer, e.Model, e.Level,
			nullable(e.TemplateID), nullable(e.SourceExtractionID), e.CreatedBy, e.CreatedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		return dbError("insert equipment", err)
	}
	return nil
}

func (r *projectRowRepo) InsertMaterial(ctx context.Context, m *entity.Material) error {
	stamp(&m.ID, &m.CreatedAt)
	b := r.conn.sql().Insert("materials").
		Columns("id", "project_id", "name", "material_type", "category", "level",
			"template_id", "source_extraction_id", "created_by", "created_at").
		Values(m.ID, m.ProjectID, m.Name, m.MaterialType, m.Category, m.Level,
			nullable(m.TemplateID), nullable(m.SourceExtractionID), m.CreatedBy, m.CreatedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		return dbError("insert material", err)
	}
	return nil
}

func (r *projectRowRepo) ListAreas(ctx context.Context, projectID string) ([]entity.Area, error) {
	b := r.conn.sql()
	q := b.Select("id", "project_id", "name", "area_type", "parent_id", "floor_number", "area_sqm",
		"source_extraction_id", "created_by", "created_at").
		From(b.Table("areas")).
		Where(entsql.EQ("project_id", projectID)).
		OrderBy("created_at", "name")
	var out []entity.Area
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			a              entity.Area
			areaType       string
			parent, source sql.NullString
			floor          sql.NullInt64
			sqm            sql.NullFloat64
			createdAt      any
		)
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Name, &areaType, &parent, &floor, &sqm,
			&source, &a.CreatedBy, &createdAt); err != nil {
			return err
		}
		a.AreaType = constants.AreaType(areaType)
		a.ParentID, a.SourceExtractionID = strPtr(parent), strPtr(source)
		a.FloorNumber, a.AreaSqm = intPtr(floor), floatPtr(sqm)
		t, err := toTime(createdAt)
		if err != nil {
			return err
		}
		a.CreatedAt = t
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, dbError("list areas", err)
	}
	return out, nil
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
