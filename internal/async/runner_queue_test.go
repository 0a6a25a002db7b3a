package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/takeoff-tracker/constants"
	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

type fakeRunner struct {
	mu         sync.Mutex
	runs       []string
	reextracts []string
	requestIDs []string
}

func (f *fakeRunner) record(ctx context.Context, list *[]string, id string) (*entity.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*list = append(*list, id)
	f.requestIDs = append(f.requestIDs, common.RequestIDFromContext(ctx))
	if id == "bad" {
		return nil, errors.New("boom")
	}
	return &entity.Extraction{ID: id, Status: constants.StatusCompleted}, nil
}

func (f *fakeRunner) Run(ctx context.Context, id string) (*entity.Extraction, error) {
	return f.record(ctx, &f.runs, id)
}

func (f *fakeRunner) Reextract(ctx context.Context, id string) (*entity.Extraction, error) {
	return f.record(ctx, &f.reextracts, id)
}

func TestRunnerQueueProcessesAllJobs(t *testing.T) {
	r := &fakeRunner{}
	var (
		mu     sync.Mutex
		failed []string
		done   int
	)
	q := NewRunnerQueue(r, nil, WithWorkers(3), WithQueueSize(1), WithOnDone(func(job Job, _ *entity.Extraction, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			failed = append(failed, job.ExtractionID)
		}
	}))

	ctx := common.WithRequestID(context.Background(), "req-1")
	for _, id := range []string{"a", "b", "bad", "c"} {
		require.NoError(t, q.Enqueue(ctx, Job{ExtractionID: id}))
	}
	require.NoError(t, q.Enqueue(ctx, Job{ExtractionID: "d", Reextract: true}))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	assert.ElementsMatch(t, []string{"a", "b", "bad", "c"}, r.runs)
	assert.Equal(t, []string{"d"}, r.reextracts)
	for _, id := range r.requestIDs {
		assert.Equal(t, "req-1", id)
	}
	assert.Equal(t, 5, done)
	assert.Equal(t, []string{"bad"}, failed)
}

func TestRunnerQueueRejectsAfterShutdown(t *testing.T) {
	q := NewRunnerQueue(&fakeRunner{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{ExtractionID: "late"})
	assert.ErrorIs(t, err, common.ErrNotReady)
}
