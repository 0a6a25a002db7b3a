package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/async"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
	"github.com/joseph-ayodele/takeoff-tracker/internal/importer"
	"github.com/joseph-ayodele/takeoff-tracker/internal/ingest"
	"github.com/joseph-ayodele/takeoff-tracker/internal/pipeline"
	"github.com/joseph-ayodele/takeoff-tracker/internal/repository"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	actor      string
}

// rootCommand builds the CLI. The app is wired once in PersistentPreRunE;
// the returned func closes it and is safe to call when wiring never ran.
func rootCommand() (*cobra.Command, func()) {
	var (
		flags globalFlags
		a     *app
	)
	root := &cobra.Command{
		Use:           "takeoff",
		Short:         "Construction document extraction and import",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if flags.configPath != "" {
				if err := os.Setenv(common.EnvPrefix+"_CONFIG", flags.configPath); err != nil {
					return err
				}
			}
			cfg, err := common.LoadConfig()
			if err != nil {
				return err
			}
			if flags.logLevel != "" {
				cfg.Log.Level = flags.logLevel
			}
			if flags.logFormat != "" {
				cfg.Log.Format = flags.logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := common.NewLogger(cfg.Log, os.Stderr)
			a, err = newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			ctx := common.WithRequestID(cmd.Context(), uuid.NewString())
			if flags.actor != "" {
				ctx = common.WithActor(ctx, flags.actor)
			}
			cmd.SetContext(ctx)
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a config file (overrides TAKEOFF_CONFIG)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text, json")
	pf.StringVar(&flags.actor, "actor", "", "user recorded on uploads and imports")

	get := func() *app { return a }
	root.AddCommand(
		migrateCommand(get),
		healthCommand(get),
		uploadCommand(get, &flags),
		createCommand(get),
		runCommand(get),
		reextractCommand(get),
		batchCommand(get, &flags),
		getCommand(get),
		listCommand(get),
		deleteCommand(get),
		importCommand(get),
		exportCommand(get),
		templatesCommand(get),
	)
	return root, func() {
		if a != nil {
			a.close()
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := get().db.Migrate(cmd.Context()); err != nil {
				return err
			}
			get().logger.Info("migrate.ok")
			return nil
		},
	}
}

func healthCommand(get func() *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the database and the takeoff engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			report := map[string]string{"database": "ok", "takeoff_engine": "disabled"}
			var failed error
			if err := a.db.HealthCheck(cmd.Context(), timeout); err != nil {
				report["database"] = err.Error()
				failed = common.WrapError(err, "database health")
			}
			if a.engine != nil {
				report["takeoff_engine"] = "ok"
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				if err := a.engine.Healthy(ctx); err != nil {
					report["takeoff_engine"] = err.Error()
					if failed == nil {
						failed = common.WrapError(err, "takeoff engine health")
					}
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return failed
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "per-check timeout")
	return cmd
}

func uploadCommand(get func() *app, flags *globalFlags) *cobra.Command {
	var (
		projectID string
		language  string
		run       bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document and create its extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := common.WithProjectID(cmd.Context(), projectID)
			e, err := uploadFile(ctx, get().orch, args[0], projectID, language, flags.actor)
			if err != nil {
				return err
			}
			if run {
				if e, err = get().orch.Run(ctx, e.ID); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&language, "language", "he", "document language hint")
	cmd.Flags().BoolVar(&run, "run", false, "run the extraction right after upload")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func uploadFile(ctx context.Context, orch *pipeline.Orchestrator, path, projectID, language, actor string) (*entity.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.InvalidInput(fmt.Sprintf("open %s: %v", path, err))
	}
	defer f.Close()
	return orch.Upload(ctx, pipeline.UploadRequest{
		ProjectID: projectID,
		Filename:  filepath.Base(path),
		Body:      f,
		Language:  language,
		Actor:     actor,
	})
}

func createCommand(get func() *app) *cobra.Command {
	var req pipeline.CreateRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an extraction for an already stored file or BIM model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := get().orch.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().StringVar(&req.ProjectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&req.FileID, "file-id", "", "stored file id")
	cmd.Flags().StringVar(&req.BimModelID, "model-id", "", "bim model id")
	cmd.Flags().StringVar(&req.Language, "language", "he", "document language hint")
	cmd.MarkFlagsMutuallyExclusive("file-id", "model-id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func runCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <extraction-id>",
		Short: "Run a pending extraction and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get().orch.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
}

func reextractCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reextract <extraction-id>",
		Short: "Clear an extraction's results and run it again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get().orch.Reextract(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
}

// batchSummary is printed once every queued extraction has finished.
type batchSummary struct {
	Ingest   ingest.DirStats `json:"ingest"`
	ByStatus map[string]int  `json:"by_status"`
	Failed   []string        `json:"failed"`
}

func batchCommand(get func() *app, flags *globalFlags) *cobra.Command {
	var (
		opts    ingest.Options
		workers int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Upload every supported document in a directory and run them concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := common.WithProjectID(cmd.Context(), opts.ProjectID)
			a := get()

			summary := batchSummary{ByStatus: map[string]int{}, Failed: []string{}}
			var mu sync.Mutex
			q := async.NewRunnerQueue(a.orch, a.logger,
				async.WithWorkers(workers),
				async.WithRunTimeout(timeout),
				async.WithOnDone(func(job async.Job, e *entity.Extraction, err error) {
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						summary.Failed = append(summary.Failed, job.ExtractionID)
						return
					}
					summary.ByStatus[string(e.Status)]++
				}))

			opts.Actor = flags.actor
			opts.OnUploaded = func(ctx context.Context, e *entity.Extraction) error {
				return q.Enqueue(ctx, async.Job{ExtractionID: e.ID})
			}
			results, stats, err := ingest.IngestDirectory(ctx, a.orch, args[0], opts, a.logger)
			q.Shutdown(ctx)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Ingest = stats
			for _, r := range results {
				if r.Err != "" {
					summary.Failed = append(summary.Failed, r.Path)
				}
			}
			sort.Strings(summary.Failed)
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id (required)")
	cmd.Flags().StringVar(&opts.Language, "language", "he", "document language hint")
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&opts.SkipHidden, "skip-hidden", true, "skip dot files and directories")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent extractions")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "per-extraction wait limit")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func getCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <extraction-id>",
		Short: "Show one extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get().orch.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), e)
		},
	}
}

func listCommand(get func() *app) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's extractions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := get().orch.List(cmd.Context(), projectID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func deleteCommand(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <extraction-id>",
		Short: "Delete an extraction and the file it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().orch.Delete(cmd.Context(), args[0])
		},
	}
}

func importCommand(get func() *app) *cobra.Command {
	var req importer.Request
	cmd := &cobra.Command{
		Use:       "import <areas|equipment|materials> <extraction-id>",
		Short:     "Import extracted items into the project, skipping existing names",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"areas", "equipment", "materials"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.NewValidator().
				Field("kind", args[0], common.OneOf("areas", "equipment", "materials")).
				Err(); err != nil {
				return err
			}
			eng := get().importer
			req.ExtractionID = args[1]
			var (
				res importer.Result
				err error
			)
			switch args[0] {
			case "areas":
				res, err = eng.ImportAreas(cmd.Context(), req)
			case "equipment":
				res, err = eng.ImportEquipment(cmd.Context(), req)
			case "materials":
				res, err = eng.ImportMaterials(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntSliceVar(&req.FloorIndices, "floors", nil, "floor indices to import (pdf and image sources)")
	cmd.Flags().StringSliceVar(&req.ObjectIDs, "ids", nil, "object ids to import (bim sources)")
	return cmd
}

func exportCommand(get func() *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <extraction-id>",
		Short: "Write an extraction's results to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := get().exporter.ExportExtractionXLSX(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = args[0] + ".xlsx"
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			get().logger.Info("export.written", "path", out, "bytes", len(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default <extraction-id>.xlsx)")
	return cmd
}

func templatesCommand(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the equipment and material catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.json>",
		Short: "Insert templates from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return common.InvalidInput(fmt.Sprintf("read %s: %v", args[0], err))
			}
			var list []entity.Template
			if err := json.Unmarshal(data, &list); err != nil {
				return common.InvalidInput(fmt.Sprintf("decode templates: %v", err))
			}
			err = get().repos.InTx(cmd.Context(), func(tx *repository.Repositories) error {
				for i := range list {
					if err := tx.Templates.Insert(cmd.Context(), &list[i]); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			get().logger.Info("templates.loaded", "count", len(list))
			return nil
		},
	})
	for _, kind := range []constants.TemplateKind{constants.TemplateEquipment, constants.TemplateMaterial} {
		cmd.AddCommand(&cobra.Command{
			Use:   "list-" + string(kind),
			Short: "List " + string(kind) + " templates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				list, err := get().repos.Templates.List(cmd.Context(), kind)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), list)
			},
		})
	}
	return cmd
}
