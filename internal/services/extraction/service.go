// Package extraction runs extraction jobs end to end: fetch the document,
// check credits, extract, write artifacts, upload them and charge.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/core"
	"github.com/joseph-ayodele/filings-extractor/internal/export"
	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
	"github.com/joseph-ayodele/filings-extractor/internal/progress"
	"github.com/joseph-ayodele/filings-extractor/internal/repository"
	"github.com/joseph-ayodele/filings-extractor/internal/storage"
)

// PageCounter reports how many pages a PDF has.
type PageCounter interface {
	PageCount(document []byte) (int, error)
}

// Outcome is what a finished job produced.
type Outcome struct {
	JobID          uuid.UUID
	Status         constants.JobStatus
	Result         *core.Result
	Artifacts      *export.Artifacts
	Keys           []string
	PagesCharged   int
	FailedSections map[string]string
}

// Service handles extraction business logic.
type Service struct {
	store        storage.ObjectStore
	pdf          PageCounter
	ledger       repository.UsageLedger
	orchestrator *core.Orchestrator
	writer       *export.Writer
	registry     *progress.Registry
	logger       *slog.Logger

	maxPagesWithoutConfig int
	pageAllowance         int
	filterTables          bool
	keepLocal             bool

	mu      sync.Mutex
	pending map[uuid.UUID]*core.Job
}

type Option func(*Service)

// WithMaxPagesWithoutConfig sets the page count above which requests must
// name their sections.
func WithMaxPagesWithoutConfig(n int) Option {
	return func(s *Service) { s.maxPagesWithoutConfig = n }
}

// WithPageAllowance caps the pages an owner may be charged in total.
func WithPageAllowance(n int) Option {
	return func(s *Service) { s.pageAllowance = n }
}

func WithFilterTables(on bool) Option {
	return func(s *Service) { s.filterTables = on }
}

// WithKeepLocal keeps local artifacts after they were uploaded.
func WithKeepLocal(on bool) Option {
	return func(s *Service) { s.keepLocal = on }
}

// NewService wires the collaborators. store may be nil, in which case
// artifacts stay on local disk and documents must be supplied by the caller.
func NewService(
	store storage.ObjectStore,
	pdf PageCounter,
	ledger repository.UsageLedger,
	orchestrator *core.Orchestrator,
	writer *export.Writer,
	registry *progress.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = progress.NewRegistry(logger)
	}
	s := &Service{
		store:                 store,
		pdf:                   pdf,
		ledger:                ledger,
		orchestrator:          orchestrator,
		writer:                writer,
		registry:              registry,
		logger:                logger,
		maxPagesWithoutConfig: 10,
		pending:               make(map[uuid.UUID]*core.Job),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Progress reads a job's percentage from the registry.
func (s *Service) Progress(jobID uuid.UUID) (int, bool) {
	return s.registry.Read(jobID.String())
}

// Attempt returns the ledger record of a job.
func (s *Service) Attempt(ctx context.Context, jobID uuid.UUID) (*repository.Attempt, error) {
	return s.ledger.GetAttempt(ctx, jobID)
}

// Submit validates req synchronously and queues the job. Problems the caller
// can fix (missing page config, unknown document, no credits) surface here.
func (s *Service) Submit(ctx context.Context, q async.Queue, req *jobspec.Request) (uuid.UUID, error) {
	jobID := uuid.New()
	document, err := s.download(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	job, err := s.Prepare(ctx, jobID, req, document)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	s.pending[jobID] = job
	s.mu.Unlock()
	s.registry.Start(jobID.String(), 0)

	if err := q.Enqueue(ctx, async.Job{ID: jobID, Request: req, TraceID: common.RequestIDFromContext(ctx)}); err != nil {
		s.mu.Lock()
		delete(s.pending, jobID)
		s.mu.Unlock()
		return uuid.Nil, err
	}
	s.logger.Info("extraction.job.queued", "job_id", jobID, "owner_id", req.OwnerID, "document", req.Document, "sections", len(job.Sections))
	return jobID, nil
}

// Process implements async.Processor for jobs accepted by Submit.
func (s *Service) Process(ctx context.Context, aj async.Job) error {
	s.mu.Lock()
	job, ok := s.pending[aj.ID]
	delete(s.pending, aj.ID)
	s.mu.Unlock()

	if !ok {
		if aj.Request == nil {
			return common.NewAppError("UNKNOWN_JOB", "job "+aj.ID.String()+" has no request", common.ErrNotFound)
		}
		document, err := s.download(ctx, aj.Request)
		if err != nil {
			return err
		}
		if job, err = s.Prepare(ctx, aj.ID, aj.Request, document); err != nil {
			return err
		}
	}
	_, err := s.Execute(ctx, job)
	return err
}

// Run prepares and executes a request without queueing.
func (s *Service) Run(ctx context.Context, req *jobspec.Request, document []byte) (*Outcome, error) {
	jobID := uuid.New()
	if document == nil {
		var err error
		if document, err = s.download(ctx, req); err != nil {
			return nil, err
		}
	}
	job, err := s.Prepare(ctx, jobID, req, document)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, job)
}

func (s *Service) download(ctx context.Context, req *jobspec.Request) ([]byte, error) {
	if s.store == nil {
		return nil, common.NewAppError("NO_STORE", "no object store configured to fetch "+req.Document, common.ErrConfig)
	}
	return s.store.Download(ctx, req.OwnerID, req.Document)
}

// Prepare counts pages, builds the job and checks the owner's allowance.
func (s *Service) Prepare(ctx context.Context, jobID uuid.UUID, req *jobspec.Request, document []byte) (*core.Job, error) {
	total, err := s.pdf.PageCount(document)
	if err != nil {
		return nil, common.NewAppError("INVALID_DOCUMENT", "count pages of "+req.Document, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	job, err := req.Job(jobID, document, total, s.maxPagesWithoutConfig, s.filterTables)
	if err != nil {
		return nil, err
	}
	requested, err := req.RequestedPages(total)
	if err != nil {
		return nil, err
	}
	if err := s.checkAllowance(ctx, req.OwnerID, requested); err != nil {
		return nil, err
	}
	s.logger.Info("extraction.job.prepared", "job_id", jobID, "document", req.Document, "total_pages", total, "requested_pages", requested)
	return job, nil
}

func (s *Service) checkAllowance(ctx context.Context, ownerID string, requested int) error {
	if s.pageAllowance <= 0 {
		return nil
	}
	used, err := s.ledger.PagesCharged(ctx, ownerID)
	if err != nil {
		return err
	}
	if used+requested > s.pageAllowance {
		s.logger.Warn("extraction.credits.insufficient", "owner_id", ownerID, "used", used, "requested", requested, "allowance", s.pageAllowance)
		return common.NewAppError("INSUFFICIENT_CREDITS",
			fmt.Sprintf("%d pages requested, %d of %d remaining", requested, max(s.pageAllowance-used, 0), s.pageAllowance),
			common.ErrInsufficientPages)
	}
	return nil
}

// Execute runs a prepared job. Only a job whose outputs could not be written
// returns an error; section and chunk failures are reported on the outcome.
func (s *Service) Execute(ctx context.Context, job *core.Job) (*Outcome, error) {
	start := time.Now()
	log := s.logger.With("job_id", job.ID, "owner_id", job.OwnerID, "document", job.DocumentName)

	attempt := repository.Attempt{
		JobID:          job.ID,
		OwnerID:        job.OwnerID,
		DocumentName:   job.DocumentName,
		Status:         string(constants.JobStatusRunning),
		PagesRequested: job.TotalPages,
		StartedAt:      start.UTC(),
	}
	if err := s.ledger.RecordAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	tracker := s.registry.Start(job.ID.String(), 0)
	// pollers see 100 only once the final attempt is on record
	defer tracker.Complete()
	res, err := s.orchestrator.Run(ctx, job, tracker)
	if err != nil {
		s.finish(ctx, attempt, constants.JobStatusFailed, 0, 0, err)
		return nil, err
	}

	out := &Outcome{JobID: job.ID, Status: res.Status(), Result: res, FailedSections: res.FailedSections()}
	artifacts, err := s.writer.WriteJob(job.DocumentName, res.Output())
	if err != nil {
		err = common.NewAppError("EXPORT_FAILED", "write job outputs", fmt.Errorf("%w: %v", common.ErrInternal, err))
		s.finish(ctx, attempt, constants.JobStatusFailed, 0, len(out.FailedSections), err)
		return nil, err
	}
	out.Artifacts = artifacts

	if s.store != nil {
		keys, err := s.upload(ctx, job.OwnerID, artifacts)
		if err != nil {
			s.writer.Cleanup(artifacts.Paths()...)
			s.finish(ctx, attempt, constants.JobStatusFailed, 0, len(out.FailedSections), err)
			return nil, err
		}
		out.Keys = keys
		if !s.keepLocal {
			s.writer.Cleanup(artifacts.Paths()...)
		}
	}

	if res.Usage.Billable {
		if err := s.ledger.Charge(ctx, job.OwnerID, job.ID, res.Usage.PagesCharged); err != nil {
			log.Error("extraction.charge.failed", "pages", res.Usage.PagesCharged, "error", err)
		} else {
			out.PagesCharged = res.Usage.PagesCharged
		}
	}

	var failure error
	if len(out.FailedSections) > 0 {
		failure = errors.New(summarize(res.Order, out.FailedSections))
	}
	s.finish(ctx, attempt, out.Status, out.PagesCharged, len(out.FailedSections), failure)
	log.Info("extraction.job.done", "status", out.Status, "pages_charged", out.PagesCharged,
		"failed_sections", len(out.FailedSections), "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (s *Service) upload(ctx context.Context, ownerID string, a *export.Artifacts) ([]string, error) {
	var keys []string
	for _, p := range a.Paths() {
		key, err := s.store.Upload(ctx, ownerID, p, constants.FolderUserExtract)
		if err != nil {
			return keys, fmt.Errorf("upload %s: %w", p, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *Service) finish(ctx context.Context, a repository.Attempt, st constants.JobStatus, charged, failed int, cause error) {
	now := time.Now().UTC()
	a.Status = string(st)
	a.PagesCharged = charged
	a.FailedSections = failed
	a.FinishedAt = &now
	if cause != nil {
		a.Error = cause.Error()
	}
	// the job context may already be done; the record still matters
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.ledger.RecordAttempt(ctx, a); err != nil {
		s.logger.Error("extraction.attempt.record_failed", "job_id", a.JobID, "error", err)
	}
}

func summarize(order []string, failed map[string]string) string {
	msg := ""
	for _, name := range order {
		reason, ok := failed[name]
		if !ok {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += name + ": " + reason
	}
	return msg
}

var _ async.Processor = (*Service)(nil)
