package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

type FileRepository interface {
	Create(ctx context.Context, f *entity.StoredFile) error
	GetByID(ctx context.Context, id string) (*entity.StoredFile, error)
	Delete(ctx context.Context, id string) error
}

type fileRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewFileRepository(db *DB, logger *slog.Logger) FileRepository {
	return newFileRepo(db.conn(), logger)
}

func newFileRepo(c conn, logger *slog.Logger) *fileRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &fileRepo{conn: c, logger: logger}
}

var fileColumns = []string{"id", "project_id", "filename", "storage_path", "mime_type", "size_bytes", "uploaded_at"}

func (r *fileRepo) Create(ctx context.Context, f *entity.StoredFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	b := r.conn.sql().Insert("files").Columns(fileColumns...).
		Values(f.ID, f.ProjectID, f.Filename, f.StoragePath, f.MimeType, f.SizeBytes, f.UploadedAt)
	if _, err := r.conn.exec(ctx, b); err != nil {
		r.logger.Error("file create failed", "project_id", f.ProjectID, "filename", f.Filename, "error", err)
		return dbError("create file", err)
	}
	r.logger.Debug("file record created", "file_id", f.ID, "storage_path", f.StoragePath, "size_bytes", f.SizeBytes)
	return nil
}

func (r *fileRepo) GetByID(ctx context.Context, id string) (*entity.StoredFile, error) {
	b := r.conn.sql()
	q := b.Select(fileColumns...).From(b.Table("files")).Where(entsql.EQ("id", id))
	var out *entity.StoredFile
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		var (
			f  entity.StoredFile
			ts any
		)
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.StoragePath, &f.MimeType, &f.SizeBytes, &ts); err != nil {
			return err
		}
		t, err := toTime(ts)
		if err != nil {
			return err
		}
		f.UploadedAt = t
		out = &f
		return nil
	})
	if err != nil {
		return nil, dbError("get file", err)
	}
	if out == nil {
		return nil, common.NotFound("file", id)
	}
	return out, nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.conn.exec(ctx, r.conn.sql().Delete("files").Where(entsql.EQ("id", id))); err != nil {
		r.logger.Error("file delete failed", "file_id", id, "error", err)
		return dbError("delete file", err)
	}
	return nil
}
