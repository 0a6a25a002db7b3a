// Package pipeline owns the extraction lifecycle: it creates records, hands
// the document to the extractor for its source and persists the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/extract"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
	"github.com/joseph-ayodele/takeoff-tracker/internal/storage"
)

// Translator starts a cloud translation for proprietary BIM files.
type Translator interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
	Translate(ctx context.Context, urn string) error
}

// UploadRequest carries a new document.
type UploadRequest struct {
	ProjectID string
	Filename  string
	Body      io.Reader
	Language  string
	Actor     string
}

// CreateRequest references exactly one of a stored file or a BIM model.
type CreateRequest struct {
	ProjectID  string
	FileID     string
	BimModelID string
	Language   string
}

// Orchestrator coordinates records, bytes and extractors.
type Orchestrator struct {
	extractions repository.ExtractionRepository
	files       repository.FileRepository
	models      repository.BimModelRepository
	store       storage.ByteStore
	registry    *extract.Registry
	translator  Translator
	metrics     *Metrics
	logger      *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTranslator enables cloud translation for bim_aps uploads.
func WithTranslator(t Translator) Option {
	return func(o *Orchestrator) { o.translator = t }
}

// WithMetrics records run outcomes.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(repos *repository.Repositories, store storage.ByteStore, registry *extract.Registry, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		extractions: repos.Extractions,
		files:       repos.Files,
		models:      repos.BimModels,
		store:       store,
		registry:    registry,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Upload classifies and stores a document and creates its extraction. An
// unsupported extension is rejected before anything is written.
func (o *Orchestrator) Upload(ctx context.Context, req UploadRequest) (*entity.Extraction, error) {
	if err := common.NewValidator().
		Field("project_id", req.ProjectID, common.Required).
		Field("filename", req.Filename, common.Required, common.MaxLength(255)).
		Check(req.Body != nil, "body", nil, "is required").
		Err(); err != nil {
		return nil, err
	}
	source, err := constants.ClassifyFilename(req.Filename)
	if err != nil {
		return nil, common.NewAppError(common.CodeUnsupportedFile, err.Error(), err)
	}
	if o.store == nil {
		return nil, common.ConfigurationError("byte store is not configured")
	}

	logger := common.LoggerFrom(ctx, o.logger).With("filename", req.Filename, "source", source, "actor", req.Actor)
	name := filepath.Base(strings.TrimSpace(req.Filename))
	id := uuid.NewString()
	key := storage.Key(req.ProjectID, id, filepath.Ext(name))
	size, err := o.store.Save(ctx, key, req.Body)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	logger.Info("upload.stored", "key", key, "size_bytes", size)

	if source != constants.SourceBIMAPS {
		file := &entity.StoredFile{
			ID:          id,
			ProjectID:   req.ProjectID,
			Filename:    name,
			StoragePath: key,
			MimeType:    constants.MimeTypeFor(name),
			SizeBytes:   size,
		}
		if err := o.files.Create(ctx, file); err != nil {
			storage.TryDelete(ctx, o.store, key, logger)
			return nil, err
		}
		return o.Create(ctx, CreateRequest{ProjectID: req.ProjectID, FileID: file.ID, Language: req.Language})
	}

	model := &entity.BimModel{
		ID:          id,
		ProjectID:   req.ProjectID,
		Filename:    name,
		StoragePath: key,
	}
	if err := o.models.Create(ctx, model); err != nil {
		storage.TryDelete(ctx, o.store, key, logger)
		return nil, err
	}
	o.translate(ctx, model, logger)
	return o.Create(ctx, CreateRequest{ProjectID: req.ProjectID, BimModelID: model.ID, Language: req.Language})
}

// translate sends the model to the cloud viewer. Failures mark the model
// failed and never fail the upload.
func (o *Orchestrator) translate(ctx context.Context, model *entity.BimModel, logger *slog.Logger) {
	fail := func(stage string, err error) {
		logger.Warn("upload.translation.failed", "bim_model_id", model.ID, "stage", stage, "error", err)
		if uerr := o.models.UpdateTranslation(ctx, model.ID, constants.TranslationFailed, common.Truncate(err.Error(), 255), ""); uerr != nil {
			logger.Error("upload.translation.status_failed", "bim_model_id", model.ID, "error", uerr)
		}
	}
	if o.translator == nil {
		fail("config", common.ConfigurationError("cloud BIM viewer is not configured"))
		return
	}
	data, err := o.store.Read(ctx, model.StoragePath)
	if err != nil {
		fail("read", err)
		return
	}
	urn, err := o.translator.Upload(ctx, data, model.Filename)
	if err != nil {
		fail("upload", err)
		return
	}
	if err := o.translator.Translate(ctx, urn); err != nil {
		fail("translate", err)
		return
	}
	if err := o.models.UpdateTranslation(ctx, model.ID, constants.TranslationInProgress, "0%", urn); err != nil {
		logger.Error("upload.translation.status_failed", "bim_model_id", model.ID, "error", err)
		return
	}
	logger.Info("upload.translation.started", "bim_model_id", model.ID, "urn", urn)
}

// Create persists a new extraction for an already stored file or model.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*entity.Extraction, error) {
	hasFile, hasModel := req.FileID != "", req.BimModelID != ""
	if err := common.NewValidator().
		Field("project_id", req.ProjectID, common.Required).
		Check(hasFile != hasModel, "source", req, "exactly one of file_id or bim_model_id is required").
		Err(); err != nil {
		return nil, err
	}

	e := &entity.Extraction{ProjectID: req.ProjectID, Language: req.Language, Status: constants.StatusPending}
	if hasFile {
		file, err := o.files.GetByID(ctx, req.FileID)
		if err != nil {
			return nil, err
		}
		source, err := constants.ClassifyFilename(file.Filename)
		if err != nil {
			return nil, common.NewAppError(common.CodeUnsupportedFile, err.Error(), err)
		}
		if source == constants.SourceBIMAPS {
			return nil, common.InvalidInput(fmt.Sprintf("file %q must be uploaded as a BIM model", file.Filename))
		}
		e.FileID, e.Source = &file.ID, source
	} else {
		model, err := o.models.GetByID(ctx, req.BimModelID)
		if err != nil {
			return nil, err
		}
		e.BimModelID, e.Source = &model.ID, constants.SourceBIMAPS
		e.Status = constants.StatusProcessing
	}

	if err := o.extractions.Create(ctx, e); err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, o.logger).Info("extraction.created",
		"extraction_id", e.ID, "source", e.Source, "status", e.Status)
	return e, nil
}

// Run executes the extraction and records its terminal state. Extractor
// failures are recorded on the row, not returned. The work is detached from
// ctx: when ctx ends first Run returns ctx.Err() and the work still commits.
func (o *Orchestrator) Run(ctx context.Context, id string) (*entity.Extraction, error) {
	e, err := o.extractions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !runnable(e) {
		return nil, common.InvalidInput(fmt.Sprintf("extraction %s is %s and cannot run", e.ID, e.Status))
	}
	if e.Status != constants.StatusProcessing {
		if err := o.extractions.MarkProcessing(ctx, e.ID); err != nil {
			return nil, err
		}
	}

	logger := common.LoggerFrom(ctx, o.logger).With("extraction_id", e.ID, "source", e.Source)
	done := make(chan error, 1)
	work := context.WithoutCancel(ctx)
	go func() {
		done <- o.execute(work, e, logger)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return o.extractions.GetByID(ctx, e.ID)
	case <-ctx.Done():
		logger.Warn("extraction.run.detached", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

func runnable(e *entity.Extraction) bool {
	switch e.Status {
	case constants.StatusPending:
		return true
	case constants.StatusProcessing:
		return e.Source == constants.SourceBIMAPS && e.ExtractedData == nil
	}
	return false
}

// execute runs the extractor and commits the terminal state. The returned
// error is set only when the state could not be persisted.
func (o *Orchestrator) execute(ctx context.Context, e *entity.Extraction, logger *slog.Logger) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("extraction.run.panic", "panic", p, "stack", string(debug.Stack()))
			err = o.fail(ctx, e, fmt.Errorf("extractor panic: %v", p), start, logger)
		}
	}()

	out, err := o.extract(ctx, e)
	if err != nil {
		return o.fail(ctx, e, err, start, logger)
	}
	if err := extract.ValidateResult(out.Result); err != nil {
		return o.fail(ctx, e, fmt.Errorf("invalid extraction result: %w", err), start, logger)
	}

	c := repository.Completion{Data: out.Result, Summary: out.Summary, TierUsed: out.Tier, ProcessingTimeMs: out.ProcessingTimeMs}
	if c.ProcessingTimeMs == 0 {
		c.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	elapsed := time.Since(start)
	if err := o.extractions.Complete(ctx, e.ID, c); err != nil {
		logger.Error("extraction.run.persist_failed", "error", err)
		return err
	}
	o.metrics.observe(e.Source, constants.StatusCompleted, elapsed)
	logger.Info("extraction.run.completed",
		"tier", out.Tier,
		"areas", len(out.Result.Areas),
		"floors", len(out.Result.Floors),
		"equipment", len(out.Result.Equipment),
		"materials", len(out.Result.Materials),
		"elapsed_ms", elapsed.Milliseconds())
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, e *entity.Extraction, cause error, start time.Time, logger *slog.Logger) error {
	elapsed := time.Since(start)
	msg := common.Truncate(cause.Error(), constants.MaxErrorMessageLen)
	logger.Warn("extraction.run.failed", "error", msg, "elapsed_ms", elapsed.Milliseconds())
	if err := o.extractions.Fail(ctx, e.ID, msg); err != nil {
		logger.Error("extraction.run.persist_failed", "error", err)
		return err
	}
	o.metrics.observe(e.Source, constants.StatusFailed, elapsed)
	return nil
}

// extract resolves the input for the row's source and dispatches it.
func (o *Orchestrator) extract(ctx context.Context, e *entity.Extraction) (extract.Output, error) {
	x, err := o.registry.Get(e.Source)
	if err != nil {
		return extract.Output{}, err
	}
	in := extract.Input{Extraction: e, Language: e.Language}
	switch {
	case e.BimModelID != nil:
		if in.BimModel, err = o.models.GetByID(ctx, *e.BimModelID); err != nil {
			return extract.Output{}, err
		}
	case e.FileID != nil:
		if in.File, err = o.files.GetByID(ctx, *e.FileID); err != nil {
			return extract.Output{}, err
		}
		if o.store == nil {
			return extract.Output{}, common.ConfigurationError("byte store is not configured")
		}
		if in.Content, err = o.store.Read(ctx, in.File.StoragePath); err != nil {
			return extract.Output{}, fmt.Errorf("read %s: %w", in.File.StoragePath, err)
		}
	default:
		return extract.Output{}, errors.New("extraction has no source reference")
	}
	out, err := x.Extract(ctx, in)
	if err != nil {
		return extract.Output{}, err
	}
	if out.Result == nil {
		return extract.Output{}, common.NewAppError(common.CodeExtraction, "extractor returned no result", common.ErrExtractionFailure)
	}
	return out, nil
}

// Reextract resets a finished extraction to pending with a new version and
// runs it again.
func (o *Orchestrator) Reextract(ctx context.Context, id string) (*entity.Extraction, error) {
	e, err := o.extractions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != constants.StatusCompleted && e.Status != constants.StatusFailed {
		return nil, common.InvalidInput(fmt.Sprintf("extraction %s is %s; only completed or failed extractions can be re-extracted", e.ID, e.Status))
	}
	if err := o.extractions.ResetForReextract(ctx, e.ID); err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, o.logger).Info("extraction.reextract", "extraction_id", e.ID, "previous_version", e.Version)
	return o.Run(ctx, e.ID)
}

// Delete removes the extraction and the file it owns. Removing the bytes is
// advisory.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	e, err := o.extractions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var file *entity.StoredFile
	if e.OwnsFile() {
		if file, err = o.files.GetByID(ctx, *e.FileID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}
	if err := o.extractions.Delete(ctx, e.ID); err != nil {
		return err
	}
	logger := common.LoggerFrom(ctx, o.logger).With("extraction_id", e.ID)
	if file != nil {
		if err := o.files.Delete(ctx, file.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
		if o.store != nil {
			storage.TryDelete(ctx, o.store, file.StoragePath, logger)
		}
	}
	logger.Info("extraction.deleted", "file_deleted", file != nil)
	return nil
}

func (o *Orchestrator) Get(ctx context.Context, id string) (*entity.Extraction, error) {
	return o.extractions.GetByID(ctx, id)
}

func (o *Orchestrator) List(ctx context.Context, projectID string) ([]*entity.Extraction, error) {
	return o.extractions.ListByProject(ctx, projectID)
}
