package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/filings-extractor/constants"
	"github.com/joseph-ayodele/filings-extractor/internal/async"
	"github.com/joseph-ayodele/filings-extractor/internal/common"
	"github.com/joseph-ayodele/filings-extractor/internal/docintel"
	"github.com/joseph-ayodele/filings-extractor/internal/jobspec"
	"github.com/joseph-ayodele/filings-extractor/internal/services/extraction"
)

type ExtractionService struct {
	svc    *extraction.Service
	queue  async.Queue
	logger *slog.Logger
}

func NewExtractionService(svc *extraction.Service, queue async.Queue, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{svc: svc, queue: queue, logger: logger}
}

// Extract accepts a request shaped like a job manifest and queues it.
func (s *ExtractionService) Extract(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := in.MarshalJSON()
	if err != nil {
		return nil, common.InvalidArgumentErrorf("request: %v", err)
	}
	req, err := jobspec.Decode(raw, "json")
	if err != nil {
		s.logger.Warn("extract request rejected", "request_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.ToStatus(err)
	}
	jobID, err := s.svc.Submit(ctx, s.queue, req)
	if err != nil {
		s.logger.Warn("extract submit failed", "owner_id", req.OwnerID, "document", req.Document, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"job_id": jobID.String(),
		"status": string(constants.JobStatusQueued),
	})
}

// Progress reports the live percentage, falling back to the ledger once the
// tracker has been released.
func (s *ExtractionService) Progress(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw := strings.TrimSpace(in.GetFields()["job_id"].GetStringValue())
	v := common.NewValidator()
	v.Field("job_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	jobID := uuid.MustParse(raw)

	resp := map[string]any{"job_id": jobID.String()}
	if pct, ok := s.svc.Progress(jobID); ok {
		resp["percent"] = pct
		resp["status"] = string(constants.JobStatusRunning)
		if pct == 100 {
			resp["status"] = s.finalStatus(ctx, jobID)
		}
		return structpb.NewStruct(resp)
	}

	a, err := s.svc.Attempt(ctx, jobID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("unknown job " + jobID.String())
	}
	if err != nil {
		return nil, common.ToStatus(err)
	}
	resp["status"] = a.Status
	// no live tracker: extraction is over but the outcome is not recorded yet
	resp["percent"] = 99
	if a.FinishedAt != nil {
		resp["percent"] = 100
		resp["pages_charged"] = a.PagesCharged
		if a.Error != "" {
			resp["error"] = a.Error
		}
	}
	return structpb.NewStruct(resp)
}

func (s *ExtractionService) finalStatus(ctx context.Context, jobID uuid.UUID) string {
	a, err := s.svc.Attempt(ctx, jobID)
	if err != nil || a.FinishedAt == nil {
		return string(constants.JobStatusRunning)
	}
	return a.Status
}

func (s *ExtractionService) ListModels(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	names := docintel.Models()
	models := make([]any, 0, len(names))
	for _, n := range names {
		models = append(models, map[string]any{"name": n, "model_id": docintel.MapModel(n)})
	}
	return structpb.NewStruct(map[string]any{"models": models, "default": docintel.DefaultModel})
}

var _ ExtractionServer = (*ExtractionService)(nil)
