package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
)

// Job is one queued extraction request.
type Job struct {
	ID          uuid.UUID
	Request     *jobspec.Request
	SubmittedAt time.Time
	TraceID     string
}

// Processor runs a dequeued job to completion.
type Processor interface {
	Process(ctx context.Context, job Job) error
}

type ProcessorFunc func(ctx context.Context, job Job) error

func (f ProcessorFunc) Process(ctx context.Context, job Job) error { return f(ctx, job) }

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
