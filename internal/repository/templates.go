package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// TemplateRepository reads the equipment and material catalogs. Insert exists
// for seeding; the catalogs are otherwise owned elsewhere.
type TemplateRepository interface {
	List(ctx context.Context, kind constants.TemplateKind) ([]entity.Template, error)
	Insert(ctx context.Context, t *entity.Template) error
}

type templateRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewTemplateRepository(db *DB, logger *slog.Logger) TemplateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &templateRepo{conn: db.conn(), logger: logger}
}

var templateColumns = []string{"id", "name", "name_en", "name_he", "category", "aliases"}

func templateTable(kind constants.TemplateKind) (string, error) {
	switch kind {
	case constants.TemplateEquipment:
		return "equipment_templates", nil
	case constants.TemplateMaterial:
		return "material_templates", nil
	}
	return "", fmt.Errorf("unknown template kind %q", kind)
}

func (r *templateRepo) List(ctx context.Context, kind constants.TemplateKind) ([]entity.Template, error) {
	table, err := templateTable(kind)
	if err != nil {
		return nil, err
	}
	b := r.conn.sql()
	q := b.Select(templateColumns...).From(b.Table(table)).OrderBy("name", "id")
	var out []entity.Template
	err = r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		t := entity.Template{Kind: kind}
		var aliases sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.NameEn, &t.NameHe, &t.Category, &aliases); err != nil {
			return err
		}
		if err := unmarshalJSON(aliases, &t.Aliases); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list templates", "kind", kind, "error", err)
		return nil, dbError("list templates", err)
	}
	return out, nil
}

func (r *templateRepo) Insert(ctx context.Context, t *entity.Template) error {
	table, err := templateTable(t.Kind)
	if err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	aliases := t.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	js, err := marshalJSON(aliases)
	if err != nil {
		return err
	}
	b := r.conn.sql().Insert(table).Columns(templateColumns...).
		Values(t.ID, t.Name, t.NameEn, t.NameHe, t.Category, js)
	if _, err := r.conn.exec(ctx, b); err != nil {
		return dbError("insert template", err)
	}
	return nil
}
