package ingest

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
)

// IngestionResult is the per-manifest ingest outcome.
type IngestionResult struct {
	Manifest     string
	Document     string
	JobID        uuid.UUID
	Deduplicated bool
	HashHex      string
	Err          string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Submitted    uint32
	Deduplicated uint32
	Failed       uint32
}

// Submitter queues a decoded request; *extraction.Service satisfies it.
type Submitter interface {
	Submit(ctx context.Context, q async.Queue, req *jobspec.Request) (uuid.UUID, error)
}

// Uploader stores a document that sits next to its manifest.
type Uploader interface {
	Put(ctx context.Context, ownerID, folder, name string, r io.Reader) (string, error)
}

// Ingestor is the behavior the daemon depends on.
type Ingestor interface {
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
