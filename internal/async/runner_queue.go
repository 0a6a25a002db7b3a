package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/takeoff-tracker/internal/common"
	"github.com/joseph-ayodele/takeoff-tracker/internal/entity"
)

// RunnerQueue runs queued extractions on a fixed pool of workers.
type RunnerQueue struct {
	runner  Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(Job, *entity.Extraction, error)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*RunnerQueue)

func WithWorkers(n int) Option {
	return func(q *RunnerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *RunnerQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(q *RunnerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone registers a callback invoked from the worker after each job.
func WithOnDone(fn func(Job, *entity.Extraction, error)) Option {
	return func(q *RunnerQueue) { q.onDone = fn }
}

func NewRunnerQueue(runner Runner, logger *slog.Logger, opts ...Option) *RunnerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunnerQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 15 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunnerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *RunnerQueue) process(workerID int, job Job) {
	ctx := context.Background()
	if job.RequestID != "" {
		ctx = common.WithRequestID(ctx, job.RequestID)
	}
	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	var (
		e   *entity.Extraction
		err error
	)
	if job.Reextract {
		e, err = q.runner.Reextract(ctx, job.ExtractionID)
	} else {
		e, err = q.runner.Run(ctx, job.ExtractionID)
	}

	logger := common.LoggerFrom(ctx, q.logger).With("worker_id", workerID, "extraction_id", job.ExtractionID)
	if err != nil {
		logger.Error("queue.job.failed", "error", err)
	} else {
		logger.Info("queue.job.done", "status", e.Status, "wait_ms", time.Since(job.SubmittedAt).Milliseconds())
	}
	if q.onDone != nil {
		q.onDone(job, e, err)
	}
}

// Enqueue blocks when the queue is full. Jobs submitted after Shutdown are
// rejected.
func (q *RunnerQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "extraction_id", job.ExtractionID)
		return common.NotReady("queue is shutting down")
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.RequestID == "" {
		job.RequestID = common.RequestIDFromContext(ctx)
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.backpressure", "extraction_id", job.ExtractionID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	q.logger.Debug("queue.enqueued", "extraction_id", job.ExtractionID, "reextract", job.Reextract)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (q *RunnerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
