package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/cache"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/dates"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
	"github.com/joseph-ayodele/contracts-tracker/internal/metrics"
	"github.com/joseph-ayodele/contracts-tracker/internal/ocr"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	"github.com/joseph-ayodele/contracts-tracker/internal/recovery"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

// DefaultLeadDays is how long before a contract end date its reminder fires.
const DefaultLeadDays = 30

// Extractor runs the extraction pipeline on one document.
type Extractor interface {
	Run(ctx context.Context, doc recovery.Document) (pipeline.ExtractionResult, error)
}

// ResultCache stores serialized results by key.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ResultValidator checks a serialized result before it is stored.
type ResultValidator interface {
	Validate(data []byte) error
}

// Request is one uploaded document.
type Request struct {
	Data       []byte
	Name       string
	FormatHint string
}

// Outcome is what a host reports back for a processed document.
type Outcome struct {
	JobID       uuid.UUID
	ContentHash string
	Format      string
	Result      pipeline.ExtractionResult
	Cached      bool
}

// Processor wraps the pipeline with hashing, caching, validation, job
// bookkeeping and reminder scheduling. Only the pipeline is required.
type Processor struct {
	logger    *slog.Logger
	extractor Extractor
	model     string
	cache     ResultCache
	validator ResultValidator
	jobs      repository.ExtractJobRepository
	notes     repository.NotificationRepository
	leadDays  int
	metrics   *metrics.Metrics
}

type Option func(*Processor)

func WithModelVersion(v string) Option {
	return func(p *Processor) { p.model = v }
}

func WithCache(c ResultCache) Option {
	return func(p *Processor) { p.cache = c }
}

func WithValidator(v ResultValidator) Option {
	return func(p *Processor) { p.validator = v }
}

func WithJobs(r repository.ExtractJobRepository) Option {
	return func(p *Processor) { p.jobs = r }
}

// WithReminders schedules a notification leadDays before each extracted end date.
func WithReminders(r repository.NotificationRepository, leadDays int) Option {
	return func(p *Processor) {
		p.notes = r
		if leadDays >= 0 {
			p.leadDays = leadDays
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func NewProcessor(logger *slog.Logger, extractor Extractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		extractor: extractor,
		model:     "unknown",
		leadDays:  DefaultLeadDays,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Accept records a QUEUED job for later processing. Without a job repository
// the returned job is not persisted.
func (p *Processor) Accept(ctx context.Context, req Request) (*entity.ExtractJob, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	in := p.newJob(req, constants.JobStatusQueued)
	if p.jobs == nil {
		return &entity.ExtractJob{
			ID:           uuid.New(),
			SourceName:   in.SourceName,
			ContentHash:  in.ContentHash,
			Format:       in.Format,
			Status:       string(in.Status),
			StartedAt:    time.Now().UTC(),
			ModelVersion: in.ModelVersion,
		}, nil
	}
	return p.jobs.Start(ctx, in)
}

// Process records a RUNNING job and extracts the document.
func (p *Processor) Process(ctx context.Context, req Request) (Outcome, error) {
	if err := validateRequest(req); err != nil {
		return Outcome{}, err
	}
	jobID := uuid.Nil
	if p.jobs != nil {
		job, err := p.jobs.Start(ctx, p.newJob(req, constants.JobStatusRunning))
		if err != nil {
			return Outcome{}, err
		}
		jobID = job.ID
	}
	return p.run(ctx, jobID, req)
}

// ProcessJob extracts the document for a job created by Accept.
func (p *Processor) ProcessJob(ctx context.Context, jobID uuid.UUID, req Request) (Outcome, error) {
	if p.jobs != nil {
		if err := p.jobs.MarkRunning(ctx, jobID); err != nil {
			return Outcome{JobID: jobID}, err
		}
	}
	return p.run(ctx, jobID, req)
}

func (p *Processor) run(ctx context.Context, jobID uuid.UUID, req Request) (Outcome, error) {
	hash := ContentHash(req.Data)
	format := constants.ResolveFormat(req.FormatHint, req.Name)
	out := Outcome{JobID: jobID, ContentHash: hash, Format: format}

	if jobID != uuid.Nil {
		ctx = common.WithJobID(ctx, jobID.String())
	}
	ctx = ocr.WithContentHash(ctx, hash)
	logger := common.LoggerFromContext(ctx, p.logger)

	key := cache.Key(hash, p.model)
	raw, hit := p.lookup(ctx, logger, key)
	if hit {
		if err := json.Unmarshal(raw, &out.Result); err != nil {
			logger.Warn("processor.cache.corrupt", "key", key, "err", err)
			hit = false
		}
	}

	if !hit {
		res, err := p.extractor.Run(ctx, recovery.Document{Data: req.Data, Format: format, Name: req.Name})
		if err != nil {
			p.fail(ctx, logger, jobID, err)
			if errors.Is(err, ocr.ErrToolMissing) {
				return out, common.NewAppError("OCR_UNAVAILABLE", "text recovery tooling is not installed", fmt.Errorf("%w: %w", common.ErrInternal, err))
			}
			if recovery.IsRecoveryError(err) {
				return out, common.NewAppError("RECOVERY_FAILED", "text recovery failed", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
			}
			return out, err
		}
		out.Result = res

		raw, err = json.Marshal(res)
		if err != nil {
			p.fail(ctx, logger, jobID, err)
			return out, fmt.Errorf("marshal result: %w", err)
		}
		if p.validator != nil {
			if err := p.validator.Validate(raw); err != nil {
				p.fail(ctx, logger, jobID, err)
				return out, common.WrapError(err, "validate result")
			}
		}
		if p.cache != nil {
			if err := p.cache.Set(ctx, key, raw); err != nil {
				logger.Warn("processor.cache.set_failed", "key", key, "err", err)
			}
		}
	}
	out.Cached = hit

	if p.jobs != nil && jobID != uuid.Nil {
		if err := p.jobs.FinishSuccess(ctx, jobID, raw, out.Result.NeedsReview); err != nil {
			return out, err
		}
	}
	if err := p.scheduleReminder(ctx, logger, jobID, out.Result); err != nil {
		return out, err
	}

	logger.Info("processor.extract.ok",
		"name", req.Name,
		"format", format,
		"hash", hash,
		"cached", hit,
		"needs_review", out.Result.NeedsReview,
	)
	return out, nil
}

func (p *Processor) lookup(ctx context.Context, logger *slog.Logger, key string) ([]byte, bool) {
	if p.cache == nil {
		return nil, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.metrics.IncCache("error")
		logger.Warn("processor.cache.get_failed", "key", key, "err", err)
		return nil, false
	case ok:
		p.metrics.IncCache("hit")
		return raw, true
	default:
		p.metrics.IncCache("miss")
		return nil, false
	}
}

func (p *Processor) scheduleReminder(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, res pipeline.ExtractionResult) error {
	if p.notes == nil || jobID == uuid.Nil || res.EndDate == nil {
		return nil
	}
	day, ok := ReminderDate(*res.EndDate, p.leadDays)
	if !ok {
		return nil
	}
	if _, err := p.notes.Schedule(ctx, jobID, day); err != nil {
		return err
	}
	logger.Debug("processor.reminder.scheduled", "notify_on", day, "end_date", *res.EndDate)
	return nil
}

// ReminderDate returns endDate minus leadDays as YYYY-MM-DD.
func ReminderDate(endDate string, leadDays int) (string, bool) {
	end, err := time.Parse(dates.Layout, endDate)
	if err != nil {
		return "", false
	}
	return dates.Format(end.AddDate(0, 0, -leadDays)), true
}

func (p *Processor) fail(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, cause error) {
	logger.Error("processor.extract.failed", "err", cause)
	if p.jobs == nil || jobID == uuid.Nil {
		return
	}
	if err := p.jobs.FinishFailure(ctx, jobID, cause.Error()); err != nil {
		logger.Error("processor.job.finish_failed", "err", err)
	}
}

func (p *Processor) newJob(req Request, status constants.JobStatus) repository.NewJob {
	return repository.NewJob{
		SourceName:   req.Name,
		ContentHash:  ContentHash(req.Data),
		Format:       constants.ResolveFormat(req.FormatHint, req.Name),
		Status:       status,
		ModelVersion: p.model,
	}
}

func validateRequest(req Request) error {
	v := common.NewValidator()
	v.Field("file", req.Data, common.Required)
	v.Field("filename", req.Name, common.MaxLength(512))
	return v.Error()
}
