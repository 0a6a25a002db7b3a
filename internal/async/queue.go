package async

import (
	"context"
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// Job asks a worker to run one extraction.
type Job struct {
	ExtractionID string
	Reextract    bool // clear prior results before running
	SubmittedAt  time.Time
	RequestID    string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Runner executes extractions. The pipeline orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, id string) (*entity.Extraction, error)
	Reextract(ctx context.Context, id string) (*entity.Extraction, error)
}
