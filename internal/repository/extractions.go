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

// Completion is the payload persisted when an extraction succeeds.
type Completion struct {
	Data             *entity.ExtractionResult
	Summary          map[string]any
	TierUsed         string
	ProcessingTimeMs int64
}

type ExtractionRepository interface {
	Create(ctx context.Context, e *entity.Extraction) error
	GetByID(ctx context.Context, id string) (*entity.Extraction, error)
	ListByProject(ctx context.Context, projectID string) ([]*entity.Extraction, error)
	MarkProcessing(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, c Completion) error
	Fail(ctx context.Context, id string, message string) error
	ResetForReextract(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type extractionRepo struct {
	conn   conn
	logger *slog.Logger
}

func NewExtractionRepository(db *DB, logger *slog.Logger) ExtractionRepository {
	return newExtractionRepo(db.conn(), logger)
}

func newExtractionRepo(c conn, logger *slog.Logger) *extractionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionRepo{conn: c, logger: logger}
}

const extractionsTable = "extractions"

var extractionColumns = []string{
	"id", "project_id", "file_id", "bim_model_id", "source", "status",
	"extracted_data", "summary", "tier_used", "processing_time_ms", "error_message",
	"language", "version", "created_at", "updated_at", "completed_at",
}

func (r *extractionRepo) Create(ctx context.Context, e *entity.Extraction) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Version == 0 {
		e.Version = 1
	}

	var data, summary any
	if e.ExtractedData != nil {
		s, err := marshalJSON(e.ExtractedData)
		if err != nil {
			return err
		}
		data = s
	}
	if e.Summary != nil {
		s, err := marshalJSON(e.Summary)
		if err != nil {
			return err
		}
		summary = s
	}

	b := r.conn.sql().Insert(extractionsTable).
		Columns(extractionColumns...).
		Values(
			e.ID, e.ProjectID, nullable(e.FileID), nullable(e.BimModelID), string(e.Source), string(e.Status),
			data, summary, nullable(e.TierUsed), nullable(e.ProcessingTimeMs), nullable(e.ErrorMessage),
			e.Language, e.Version, e.CreatedAt, e.UpdatedAt, nullable(e.CompletedAt),
		)
	if _, err := r.conn.exec(ctx, b); err != nil {
		r.logger.Error("extraction create failed", "project_id", e.ProjectID, "source", e.Source, "error", err)
		return dbError("create extraction", err)
	}
	r.logger.Info("extraction created", "extraction_id", e.ID, "source", e.Source, "status", e.Status)
	return nil
}

func (r *extractionRepo) GetByID(ctx context.Context, id string) (*entity.Extraction, error) {
	b := r.conn.sql()
	q := b.Select(extractionColumns...).From(b.Table(extractionsTable)).Where(entsql.EQ("id", id))
	var out *entity.Extraction
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		e, err := scanExtraction(rows)
		out = e
		return err
	})
	if err != nil {
		return nil, dbError("get extraction", err)
	}
	if out == nil {
		return nil, common.NotFound("extraction", id)
	}
	return out, nil
}

func (r *extractionRepo) ListByProject(ctx context.Context, projectID string) ([]*entity.Extraction, error) {
	b := r.conn.sql()
	q := b.Select(extractionColumns...).From(b.Table(extractionsTable)).
		Where(entsql.EQ("project_id", projectID)).
		OrderBy("created_at")
	var out []*entity.Extraction
	err := r.conn.query(ctx, q, func(rows *entsql.Rows) error {
		e, err := scanExtraction(rows)
		if err == nil {
			out = append(out, e)
		}
		return err
	})
	if err != nil {
		r.logger.Error("failed to list extractions", "project_id", projectID, "error", err)
		return nil, dbError("list extractions", err)
	}
	return out, nil
}

func (r *extractionRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.update(ctx, id, "processing", func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.StatusProcessing))
	})
}

func (r *extractionRepo) Complete(ctx context.Context, id string, c Completion) error {
	data := c.Data
	if data == nil {
		data = entity.NewExtractionResult()
	}
	data.Normalize()
	dataJSON, err := marshalJSON(data)
	if err != nil {
		return err
	}
	summary := c.Summary
	if summary == nil {
		summary = data.Summary
	}
	summaryJSON, err := marshalJSON(summary)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return r.update(ctx, id, "complete", func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.StatusCompleted)).
			Set("extracted_data", dataJSON).
			Set("summary", summaryJSON).
			Set("processing_time_ms", c.ProcessingTimeMs).
			Set("completed_at", now).
			SetNull("error_message")
		if c.TierUsed != "" {
			u.Set("tier_used", c.TierUsed)
		} else {
			u.SetNull("tier_used")
		}
	})
}

func (r *extractionRepo) Fail(ctx context.Context, id string, message string) error {
	message = common.Truncate(message, constants.MaxErrorMessageLen)
	err := r.update(ctx, id, "fail", func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.StatusFailed)).
			Set("error_message", message).
			Set("completed_at", time.Now().UTC())
	})
	if err == nil {
		r.logger.Warn("extraction finished (failed)", "extraction_id", id, "error", message)
	}
	return err
}

// ResetForReextract returns the row to pending, clears prior results and
// bumps the version in a single statement.
func (r *extractionRepo) ResetForReextract(ctx context.Context, id string) error {
	return r.update(ctx, id, "reset", func(u *entsql.UpdateBuilder) {
		u.Set("status", string(constants.StatusPending)).
			SetNull("extracted_data").
			SetNull("summary").
			SetNull("error_message").
			SetNull("tier_used").
			SetNull("processing_time_ms").
			SetNull("completed_at").
			Add("version", 1)
	})
}

func (r *extractionRepo) Delete(ctx context.Context, id string) error {
	n, err := r.conn.exec(ctx, r.conn.sql().Delete(extractionsTable).Where(entsql.EQ("id", id)))
	if err != nil {
		r.logger.Error("extraction delete failed", "extraction_id", id, "error", err)
		return dbError("delete extraction", err)
	}
	if n == 0 {
		return common.NotFound("extraction", id)
	}
	return nil
}

func (r *extractionRepo) update(ctx context.Context, id, op string, set func(u *entsql.UpdateBuilder)) error {
	u := r.conn.sql().Update(extractionsTable).Set("updated_at", time.Now().UTC())
	set(u)
	u.Where(entsql.EQ("id", id))
	n, err := r.conn.exec(ctx, u)
	if err != nil {
		r.logger.Error("extraction update failed", "extraction_id", id, "op", op, "error", err)
		return dbError("update extraction ("+op+")", err)
	}
	if n == 0 {
		return common.NotFound("extraction", id)
	}
	return nil
}

func scanExtraction(rows *entsql.Rows) (*entity.Extraction, error) {
	var (
		e                                  entity.Extraction
		fileID, bimID, data, summary, tier sql.NullString
		errMsg                             sql.NullString
		source, status                     string
		procMs                             sql.NullInt64
		createdAt, updatedAt, completedAt  any
	)
	if err := rows.Scan(
		&e.ID, &e.ProjectID, &fileID, &bimID, &source, &status,
		&data, &summary, &tier, &procMs, &errMsg,
		&e.Language, &e.Version, &createdAt, &updatedAt, &completedAt,
	); err != nil {
		return nil, err
	}
	e.FileID, e.BimModelID = strPtr(fileID), strPtr(bimID)
	e.Source = constants.ExtractionSource(source)
	e.Status = constants.ExtractionStatus(status)
	e.TierUsed, e.ErrorMessage = strPtr(tier), strPtr(errMsg)
	e.ProcessingTimeMs = int64Ptr(procMs)

	if data.Valid {
		e.ExtractedData = &entity.ExtractionResult{}
		if err := unmarshalJSON(data, e.ExtractedData); err != nil {
			return nil, err
		}
		e.ExtractedData.Normalize()
	}
	if err := unmarshalJSON(summary, &e.Summary); err != nil {
		return nil, err
	}

	var err error
	if e.CreatedAt, err = toTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = toTime(updatedAt); err != nil {
		return nil, err
	}
	if e.CompletedAt, err = toTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
