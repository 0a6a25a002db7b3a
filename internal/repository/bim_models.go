package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

type BimModelRepository interface {
	Create(ctx context.Context, m *entity.BimModel) error
	GetByID(ctx context.Context, id string) (*entity.BimModel, error)
	UpdateTranslation(ctx context.Context, id string, status constants.TranslationStatus, progress, urn string) error
	SaveMetadata(ctx context.Context, id string, md *entity.BimMetadata) error
}

type bimModelRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewBimModelRepository(db *DB, logger *slog.Logger) BimModelRepository {
	return newBimModelRepo(db.conn(), logger)
}

func newBimModelRepo(c conn, logger *slog.Logger) *bimModelRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &bimModelRepo{conn: c, logger: logger}
}

var bimModelColumns = []string{
	"id", "project_id", "filename", "storage_path", "translation_status",
	"translation_progress", "urn", "metadata_json", "created_at", "updated_at",
}

func (r *bimModelRepo) Create(ctx context.Context, m *entity.BimModel) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.TranslationStatus == "" {
		m.TranslationStatus = constants.TranslationPending
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	var md any
	if m.Metadata != nil {
		s, err := marshalJSON(m.Metadata)
		if err != nil {
			return err
		}
		md = s
	}
	b := r.conn.sql().Insert("bim_models").Columns(bimModelColumns...).
		Values(m.ID, m.ProjectID, m.Filename, m.StoragePath, string(m.TranslationStatus),
			emptyToNull(m.TranslationProgress), emptyToNull(m.URN), md, m.CreatedAt, m.UpdatedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		r.logger.Error("bim model create failed", "project_id", m.ProjectID, "error", err)
		return dbError("create bim model", err)
	}
	return nil
}

func (r *bimModelRepo) GetByID(ctx context.Context, id string) (*entity.BimModel, error) {
	b := r.conn.sql()
	q := b.Select(bimModelColumns...).From(b.Table("bim_models")).Where(entsql.EQ("id", id))
	var out *entity.BimModel
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			m                   entity.BimModel
			status              string
			progress, urn, md   sql.NullString
			createdAt, updateAt any
		)
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Filename, &m.StoragePath, &status,
			&progress, &urn, &md, &createdAt, &updateAt); err != nil {
			return err
		}
		m.TranslationStatus = constants.TranslationStatus(status)
		m.TranslationProgress, m.URN = progress.String, urn.String
		if md.Valid && md.String != "" {
			m.Metadata = &entity.BimMetadata{}
			if err := unmarshalJSON(md, m.Metadata); err != nil {
				return err
			}
		}
		var err error
		if m.CreatedAt, err = toTime(createdAt); err != nil {
			return err
		}
		if m.UpdatedAt, err = toTime(updateAt); err != nil {
			return err
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, dbError("get bim model", err)
	}
	if out == nil {
		return nil, common.NotFound("bim model", id)
	}
	return out, nil
}

func (r *bimModelRepo) UpdateTranslation(ctx context.Context, id string, status constants.TranslationStatus, progress, urn string) error {
	u := r.conn.sql().Update("bim_models").
		Set("translation_status", string(status)).
		Set("translation_progress", progress).
		Set("updated_at", time.Now().UTC())
	if urn != "" {
		u.Set("urn", urn)
	}
	u.Where(entsql.EQ("id", id))
	n, err := r.conn.exec(ctx, u)
	if err != nil {
		return dbError("update bim translation", err)
	}
	if n == 0 {
		return common.NotFound("bim model", id)
	}
	return nil
}

// SaveMetadata overwrites the cached metadata blob for the model.
func (r *bimModelRepo) SaveMetadata(ctx context.Context, id string, md *entity.BimMetadata) error {
	s, err := marshalJSON(md)
	if err != nil {
		return err
	}
	u := r.conn.sql().Update("bim_models").
		Set("metadata_json", s).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id))
	n, err := r.conn.exec(ctx, u)
	if err != nil {
		r.logger.Error("bim metadata save failed", "bim_model_id", id, "error", err)
		return dbError("save bim metadata", err)
	}
	if n == 0 {
		return common.NotFound("bim model", id)
	}
	return nil
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
