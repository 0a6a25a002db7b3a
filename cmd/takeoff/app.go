package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joseph-ayodele/takeoff-tracker/internal/aps"
	"github.com/joseph-ayodele/takeoff-tracker/internal/bim"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/export"
	"github.com/joseph-ayodele/takeoff-tracker/internal/extract"
	"github.com/joseph-ayodele/takeoff-tracker/internal/importer"
	"github.com/joseph-ayodele/takeoff-tracker/internal/matching"
	"github.com/joseph-ayodele/takeoff-tracker/internal/pipeline"
	"github.com/joseph-ayodele/takeoff-tracker/internal/raster"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
	"github.com/joseph-ayodele/takeoff-tracker/internal/storage"
	"github.com/joseph-ayodele/takeoff-tracker/internal/takeoff"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	db       *repository.DB
	repos    *repository.Repositories
	engine   *takeoff.Client
	orch     *pipeline.Orchestrator
	importer *importer.Engine
	exporter *export.Service
}

func newApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*app, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	a := &app{cfg: cfg, logger: logger, db: db, repos: repository.New(db, logger)}

	store, err := storage.New(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		LocalRoot: cfg.Storage.LocalRoot,
		GCSBucket: cfg.Storage.GCSBucket,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	taxonomy, err := bim.LoadTaxonomy(cfg.Taxonomy.Path)
	if err != nil {
		a.close()
		return nil, common.NewAppError(common.CodeConfiguration, "load taxonomy", err)
	}
	mapper := bim.NewMapper(taxonomy, logger)
	catalog := matching.NewCatalog(a.repos.Templates, cfg.Matching.TemplateCacheTTL, logger)

	extractors := []extract.Extractor{
		extract.NewImagePlanExtractor(raster.NewCommandEngine(raster.Config{
			Command: cfg.Raster.Command,
			Timeout: cfg.Raster.Timeout,
		}, logger), logger),
		extract.NewIFCExtractor(catalog, logger),
	}
	if cfg.Takeoff.Addr != "" {
		a.engine, err = takeoff.Dial(cfg.Takeoff.Addr, cfg.Takeoff.Timeout, logger)
		if err != nil {
			a.close()
			return nil, common.WrapError(err, "dial takeoff engine")
		}
		extractors = append(extractors, extract.NewPDFQuantityExtractor(a.engine, logger))
	} else {
		logger.Warn("takeoff engine address not configured, pdf extraction disabled")
	}

	metrics, err := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		a.close()
		return nil, err
	}
	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	if cfg.APSEnabled() {
		client := aps.New(aps.Config{
			BaseURL:      cfg.APS.BaseURL,
			ClientID:     cfg.APS.ClientID,
			ClientSecret: cfg.APS.ClientSecret,
			Bucket:       cfg.APS.Bucket,
			Timeout:      cfg.APS.Timeout,
		}, aps.WithLogger(logger))
		extractors = append(extractors, extract.NewAPSExtractor(client, a.repos.BimModels, mapper, catalog, logger))
		opts = append(opts, pipeline.WithTranslator(client))
	} else {
		logger.Warn("aps credentials not configured, cloud bim extraction disabled")
	}

	a.orch = pipeline.NewOrchestrator(a.repos, store, extract.NewRegistry(extractors...), logger, opts...)
	a.importer = importer.NewEngine(a.repos, logger)
	a.exporter = export.NewService(a.repos.Extractions, logger)
	return a, nil
}

func (a *app) close() {
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.logger.Warn("failed to close takeoff engine connection", "error", err)
		}
	}
	a.db.Close()
}
