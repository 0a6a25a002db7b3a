package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// ManifestRepository stores import audit records. Rows are never updated.
type ManifestRepository interface {
	Create(ctx context.Context, m *entity.ImportManifest) error
	ListByExtraction(ctx context.Context, extractionID string) ([]entity.ImportManifest, error)
}

type manifestRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewManifestRepository(db *DB, logger *slog.Logger) ManifestRepository {
	return newManifestRepo(db.conn(), logger)
}

func newManifestRepo(c conn, logger *slog.Logger) *manifestRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &manifestRepo{conn: c, logger: logger}
}

var manifestColumns = []string{
	"id", "extraction_id", "project_id", "entity_type", "imported_count",
	"skipped_count", "created_ids", "actor", "created_at",
}

func (r *manifestRepo) Create(ctx context.Context, m *entity.ImportManifest) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.CreatedIDs == nil {
		m.CreatedIDs = []string{}
	}
	ids, err := marshalJSON(m.CreatedIDs)
	if err != nil {
		return err
	}
	b := r.conn.sql().Insert("import_manifests").Columns(manifestColumns...).
		Values(m.ID, m.ExtractionID, m.ProjectID, string(m.EntityType), m.ImportedCount,
			m.SkippedCount, ids, m.Actor, m.CreatedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		r.logger.Error("manifest create failed", "extraction_id", m.ExtractionID, "error", err)
		return dbError("create import manifest", err)
	}
	return nil
}

func (r *manifestRepo) ListByExtraction(ctx context.Context, extractionID string) ([]entity.ImportManifest, error) {
	b := r.conn.sql()
	q := b.Select(manifestColumns...).From(b.Table("import_manifests")).
		Where(entsql.EQ("extraction_id", extractionID)).
		OrderBy("created_at")
	var out []entity.ImportManifest
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			m          entity.ImportManifest
			entityType string
			ids        sql.NullString
			createdAt  any
		)
		if err := rows.Scan(&m.ID, &m.ExtractionID, &m.ProjectID, &entityType, &m.ImportedCount,
			&m.SkippedCount, &ids, &m.Actor, &createdAt); err != nil {
			return err
		}
		m.EntityType = constants.EntityType(entityType)
		if err := unmarshalJSON(ids, &m.CreatedIDs); err != nil {
			return err
		}
		t, err := toTime(createdAt)
		if err != nil {
			return err
		}
		m.CreatedAt = t
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, dbError("list import manifests", err)
	}
	return out, nil
}
