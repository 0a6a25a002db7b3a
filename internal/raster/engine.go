// Package raster adapts the floor-plan image engine. The engine itself is an
// external program; this package only feeds it a file and reads its JSON.
package raster

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// Result is what the engine reports for one plan image.
type Result struct {
	Floors           []entity.Floor `json:"floors"`
	Summary          map[string]any `json:"summary"`
	Tier             string         `json:"tier"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
}

// Engine extracts floors and rooms from a plan image.
type Engine interface {
	Extract(ctx context.Context, data []byte, filename string) (*Result, error)
	Available() bool
}

type Config struct {
	Command string
	Args    []string
	Timeout time.Duration
}

// CommandEngine runs `<command> [args...] <image path>` and decodes stdout.
type CommandEngine struct {
	cfg      Config
	runner   Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

type Option func(*CommandEngine)

func WithRunner(r Runner) Option {
	return func(e *CommandEngine) { e.runner = r }
}

func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *CommandEngine) { e.lookPath = fn }
}

func NewCommandEngine(cfg Config, logger *slog.Logger, opts ...Option) *CommandEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	e := &CommandEngine{
		cfg:      cfg,
		runner:   ExecRunner{Logger: logger},
		lookPath: exec.LookPath,
		logger:   logger,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Available reports whether a command is configured and resolvable.
func (e *CommandEngine) Available() bool {
	if e == nil || strings.TrimSpace(e.cfg.Command) == "" {
		return false
	}
	_, err := e.lookPath(e.cfg.Command)
	return err == nil
}

func (e *CommandEngine) Extract(ctx context.Context, data []byte, filename string) (*Result, error) {
	ext := ".png"
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		ext = strings.ToLower(filename[i:])
	}
	tmp, err := os.CreateTemp("", "plan-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Warn("raster.tmp.remove_failed", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp image: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	args := append(append([]string{}, e.cfg.Args...), tmp.Name())
	out, errb, err := e.runner.Run(ctx, e.cfg.Command, args...)
	if err != nil {
		return nil, fmt.Errorf("raster engine: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 500))
	}

	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, fmt.Errorf("raster engine output: %w", err)
	}
	if res.ProcessingTimeMs == 0 {
		res.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	e.logger.Info("raster.extract.ok", "floors", len(res.Floors), "tier", res.Tier, "elapsed_ms", res.ProcessingTimeMs)
	return &res, nil
}
