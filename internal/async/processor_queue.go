package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/filings-extractor/internal/common"
)

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	// done is closed when Shutdown begins; sends counts Enqueue calls that
	// may still write to ch, which is only closed once they have all left.
	done   chan struct{}
	sends  sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 2,
		timeout: 30 * time.Minute,
		ch:      make(chan Job, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	ctx = common.WithJobID(ctx, job.ID.String())
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked", "worker_id", workerID, "job_id", job.ID, "panic", r)
		}
	}()
	if err := q.proc.Process(ctx, job); err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "job_id", job.ID, "error", err)
		return
	}
	q.logger.Info("processed job successfully", "worker_id", workerID, "job_id", job.ID,
		"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(), "elapsed_ms", time.Since(start).Milliseconds())
}

// Enqueue blocks while the queue is full. It fails once Shutdown has begun,
// including for callers already waiting on a full queue.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return q.rejectClosed(job)
	}
	q.sends.Add(1)
	q.mu.Unlock()
	defer q.sends.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued job for processing", "job_id", job.ID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		return q.rejectClosed(job)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ProcessorQueue) rejectClosed(job Job) error {
	q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
	return common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrService)
}

func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.sends.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}

var _ Queue = (*ProcessorQueue)(nil)
