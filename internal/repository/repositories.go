package repository

import (
	"context"
	"fmt"
	"log/slog"
)

// Repositories bundles every repository over one executor so a caller can
// swap the whole set onto a transaction.
type Repositories struct {
	Extractions ExtractionRepository
	Files       FileRepository
	BimModels   BimModelRepository
	Templates   TemplateRepository
	ProjectRows ProjectRowRepository
	Manifests   ManifestRepository

	db     *DB
	logger *slog.Logger
}

func New(db *DB, logger *slog.Logger) *Repositories {
	if logger == nil {
		logger = slog.Default()
	}
	return newRepositories(db, db.conn(), logger)
}

func newRepositories(db *DB, c conn, logger *slog.Logger) *Repositories {
	return &Repositories{
		Extractions: newExtractionRepo(c, logger),
		Files:       newFileRepo(c, logger),
		BimModels:   newBimModelRepo(c, logger),
		Templates:   &templateRepo{conn: c, logger: logger},
		ProjectRows: newProjectRowRepo(c, logger),
		Manifests:   newManifestRepo(c, logger),
		db:          db,
		logger:      logger,
	}
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (r *Repositories) InTx(ctx context.Context, fn func(tx *Repositories) error) (err error) {
	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return dbError("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(newRepositories(r.db, conn{q: tx, dialect: r.db.Dialect}, r.logger)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("transaction rollback failed", "error", rbErr)
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return dbError("commit transaction", err)
	}
	return nil
}
