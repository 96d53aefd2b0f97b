package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResult() pipeline.ExtractionResult {
	start, end := "2024-01-01", "2024-12-31"
	return pipeline.ExtractionResult{
		PartyNames:     []string{"Acme Corp", "Jane Doe"},
		StartDate:      &start,
		EndDate:        &end,
		RenewalTerms:   "renews automatically for 1 year",
		PaymentDetails: "$1,200.00",
		Provenance:     pipeline.Provenance{StartDate: "anchor:effective date", EndDate: "anchor:expiration date"},
		Warnings:       []string{},
	}
}

// fakeProcessor answers with sampleResult; "broken" content fails text recovery.
type fakeProcessor struct {
	mu       sync.Mutex
	requests []core.Request
	jobID    uuid.UUID
	cached   bool
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{jobID: uuid.New()}
}

func (p *fakeProcessor) Process(_ context.Context, req core.Request) (core.Outcome, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	switch string(req.Data) {
	case "":
		return core.Outcome{}, common.NewAppError("VALIDATION", "data is required", common.ErrValidation)
	case "broken":
		return core.Outcome{}, common.NewAppError("RECOVERY_FAILED", "text recovery failed", common.ErrInvalidInput)
	case "panic":
		panic("processor exploded")
	case "db-down":
		return core.Outcome{}, common.DBError("insert job", errors.New("connection refused"))
	}
	return core.Outcome{
		JobID:       p.jobID,
		ContentHash: core.ContentHash(req.Data),
		Format:      "PDF",
		Result:      sampleResult(),
		Cached:      p.cached,
	}, nil
}

func (p *fakeProcessor) Accept(_ context.Context, req core.Request) (*entity.ExtractJob, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if len(req.Data) == 0 {
		return nil, common.NewAppError("VALIDATION", "data is required", common.ErrValidation)
	}
	return &entity.ExtractJob{ID: uuid.New(), SourceName: req.Name, Status: "QUEUED"}, nil
}

func (p *fakeProcessor) last() core.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Shutdown(context.Context) {}

func (q *fakeQueue) enqueued() []async.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]async.Job(nil), q.jobs...)
}

type mockJobs struct {
	repository.ExtractJobRepository
	mock.Mock
}

func (m *mockJobs) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*entity.ExtractJob)
	return job, args.Error(1)
}

func (m *mockJobs) List(ctx context.Context, f repository.JobFilter) ([]entity.ExtractJob, error) {
	args := m.Called(ctx, f)
	jobs, _ := args.Get(0).([]entity.ExtractJob)
	return jobs, args.Error(1)
}

func (m *mockJobs) FinishFailure(ctx context.Context, id uuid.UUID, msg string) error {
	args := m.Called(ctx, id, msg)
	return args.Error(0)
}
