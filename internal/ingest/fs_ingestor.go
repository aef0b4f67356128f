package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
)

// FSIngestor turns manifest files on the local filesystem into queued jobs.
// A manifest whose bytes were already submitted is reported as deduplicated.
type FSIngestor struct {
	submitter Submitter
	queue     async.Queue
	uploader  Uploader
	logger    *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID
}

// NewFSIngestor builds an ingestor. uploader may be nil, in which case every
// manifest must name a document already in the object store.
func NewFSIngestor(s Submitter, q async.Queue, uploader Uploader, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		submitter: s,
		queue:     q,
		uploader:  uploader,
		logger:    logger,
		seen:      make(map[string]uuid.UUID),
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{Manifest: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.Manifest = abs
	if !IsManifest(abs) {
		return out, common.NewAppError("UNSUPPORTED_MANIFEST", "unsupported manifest extension "+filepath.Ext(abs), common.ErrInvalidInput)
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read manifest: %w", err)
	}
	sum := sha256.Sum256(raw)
	out.HashHex = hex.EncodeToString(sum[:])

	i.mu.Lock()
	prev, dup := i.seen[out.HashHex]
	i.mu.Unlock()
	if dup {
		out.JobID = prev
		out.Deduplicated = true
		return out, nil
	}

	req, err := jobspec.DecodeFile(abs, raw)
	if err != nil {
		return out, err
	}
	out.Document = req.Document

	if err := i.uploadSibling(ctx, filepath.Dir(abs), req); err != nil {
		return out, err
	}

	jobID, err := i.submitter.Submit(ctx, i.queue, req)
	if err != nil {
		return out, err
	}
	out.JobID = jobID

	i.mu.Lock()
	i.seen[out.HashHex] = jobID
	i.mu.Unlock()
	i.logger.Info("ingest.manifest.submitted", "manifest", abs, "job_id", jobID, "owner_id", req.OwnerID, "document", req.Document)
	return out, nil
}

// uploadSibling pushes the manifest's document to the store when it sits in
// the same directory. The request is rewritten to the stored name.
func (i *FSIngestor) uploadSibling(ctx context.Context, dir string, req *jobspec.Request) error {
	if i.uploader == nil {
		return nil
	}
	local := filepath.Join(dir, req.Document)
	f, err := os.Open(local)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			i.logger.Warn("close document", "path", local, "error", err)
		}
	}()

	name := filepath.Base(local)
	key, err := i.uploader.Put(ctx, req.OwnerID, constants.FolderUserUpload, name, f)
	if err != nil {
		return err
	}
	i.logger.Debug("ingest.document.uploaded", "path", local, "key", key)
	req.Document = name
	return nil
}

// IngestDirectory walks root, skips hidden entries if requested, and ingests
// every manifest found. Per-file failures are collected, not returned.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidArgumentError("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{Manifest: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsManifest(path) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			r.Err = err.Error()
			results = append(results, r)
			stats.Failed++
			i.logger.Warn("ingest.manifest.failed", "manifest", path, "error", err)
			return nil
		}
		results = append(results, r)
		if r.Deduplicated {
			stats.Deduplicated++
		} else {
			stats.Submitted++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

// Consume ingests every path from events until the channel closes or ctx ends.
func (i *FSIngestor) Consume(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-events:
			if !ok {
				return
			}
			r, err := i.IngestPath(ctx, path)
			if err != nil {
				i.logger.Warn("ingest.manifest.failed", "manifest", path, "error", err)
				continue
			}
			if r.Deduplicated {
				i.logger.Debug("ingest.manifest.duplicate", "manifest", path, "job_id", r.JobID)
			}
		}
	}
}

var _ Ingestor = (*FSIngestor)(nil)
