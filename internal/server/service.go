package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

// ErrAsyncDisabled is returned by Submit when no queue is configured.
var ErrAsyncDisabled = errors.New("async processing is not enabled")

// Processor is the part of core.Processor the transports need.
type Processor interface {
	Process(ctx context.Context, req core.Request) (core.Outcome, error)
	Accept(ctx context.Context, req core.Request) (*entity.ExtractJob, error)
}

// ExtractionService is the transport-neutral API shared by the HTTP and gRPC servers.
type ExtractionService struct {
	proc   Processor
	queue  async.Queue
	jobs   repository.ExtractJobRepository
	logger *slog.Logger
}

// NewExtractionService wires the service. queue and jobs may be nil, which
// disables async submission and job lookups respectively.
func NewExtractionService(proc Processor, queue async.Queue, jobs repository.ExtractJobRepository, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{proc: proc, queue: queue, jobs: jobs, logger: logger}
}

// Extract runs a document through the pipeline synchronously.
func (s *ExtractionService) Extract(ctx context.Context, req core.Request) (core.Outcome, error) {
	return s.proc.Process(ctx, req)
}

// Submit records a queued job and hands it to the worker pool.
func (s *ExtractionService) Submit(ctx context.Context, req core.Request) (uuid.UUID, error) {
	if s.queue == nil {
		return uuid.Nil, common.NewAppError("ASYNC_DISABLED", ErrAsyncDisabled.Error(), common.ErrQueueClosed)
	}
	job, err := s.proc.Accept(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}
	err = s.queue.Enqueue(ctx, async.Job{
		ID:        job.ID,
		Request:   req,
		RequestID: common.RequestIDFromContext(ctx),
	})
	if err != nil {
		if s.jobs != nil {
			if ferr := s.jobs.FinishFailure(context.WithoutCancel(ctx), job.ID, fmt.Sprintf("enqueue: %v", err)); ferr != nil {
				s.logger.Error("service.submit.finish_failed", "job_id", job.ID, "err", ferr)
			}
		}
		return uuid.Nil, err
	}
	return job.ID, nil
}

// GetJob looks up a job by its string id.
func (s *ExtractionService) GetJob(ctx context.Context, id string) (*entity.ExtractJob, error) {
	v := common.NewValidator()
	v.Field("id", id, common.Required, common.UUID)
	if err := v.Error(); err != nil {
		return nil, err
	}
	if s.jobs == nil {
		return nil, common.NewNotFound("job tracking is not enabled")
	}
	return s.jobs.Get(ctx, uuid.MustParse(id))
}

// ListJobs returns recent jobs matching f.
func (s *ExtractionService) ListJobs(ctx context.Context, f repository.JobFilter) ([]entity.ExtractJob, error) {
	if s.jobs == nil {
		return []entity.ExtractJob{}, nil
	}
	return s.jobs.List(ctx, f)
}
