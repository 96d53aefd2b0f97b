package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
)

// NewJob describes a job about to be recorded.
type NewJob struct {
	SourceName   string
	ContentHash  string
	Format       string
	Status       constants.JobStatus // QUEUED or RUNNING
	ModelVersion string
}

// JobFilter narrows List. Zero values match everything.
type JobFilter struct {
	Status      string
	NeedsReview *bool
	Limit       int
}

type ExtractJobRepository interface {
	Start(ctx context.Context, in NewJob) (*entity.ExtractJob, error)
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	FinishSuccess(ctx context.Context, jobID uuid.UUID, resultJSON []byte, needsReview bool) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	List(ctx context.Context, f JobFilter) ([]entity.ExtractJob, error)
}

var jobColumns = []string{
	"id", "source_name", "content_hash", "format", "status", "error_message",
	"started_at", "finished_at", "needs_review", "result_json", "model_version",
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, in NewJob) (*entity.ExtractJob, error) {
	status := in.Status
	if status == "" {
		status = constants.JobStatusRunning
	}
	job := &entity.ExtractJob{
		ID:           uuid.New(),
		SourceName:   in.SourceName,
		ContentHash:  in.ContentHash,
		Format:       in.Format,
		Status:       string(status),
		StartedAt:    time.Now().UTC(),
		ModelVersion: in.ModelVersion,
	}
	q, args := r.db.builder().
		Insert(TableExtractJobs).
		Columns("id", "source_name", "content_hash", "format", "status", "started_at", "needs_review", "model_version").
		Values(job.ID, job.SourceName, job.ContentHash, job.Format, job.Status, job.StartedAt, false, job.ModelVersion).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.log.Error("extract_job start failed", "source", in.SourceName, "err", err)
		return nil, common.DBError("start extract job", err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "source", in.SourceName, "format", in.Format, "status", job.Status)
	return job, nil
}

func (r *extractJobRepo) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	q, args := r.db.builder().
		Update(TableExtractJobs).
		Set("status", string(constants.JobStatusRunning)).
		Where(entsql.EQ("id", jobID)).
		Query()
	return r.update(ctx, jobID, q, args)
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, resultJSON []byte, needsReview bool) error {
	q, args := r.db.builder().
		Update(TableExtractJobs).
		Set("status", string(constants.JobStatusOK)).
		Set("finished_at", time.Now().UTC()).
		Set("needs_review", needsReview).
		Set("result_json", string(resultJSON)).
		Where(entsql.EQ("id", jobID)).
		Query()
	if err := r.update(ctx, jobID, q, args); err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("extract_job finished (OK)", "job_id", jobID, "needs_review", needsReview)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	q, args := r.db.builder().
		Update(TableExtractJobs).
		Set("status", string(constants.JobStatusFailed)).
		Set("finished_at", time.Now().UTC()).
		Set("error_message", message).
		Where(entsql.EQ("id", jobID)).
		Query()
	if err := r.update(ctx, jobID, q, args); err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) update(ctx context.Context, jobID uuid.UUID, q string, args []any) error {
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		return common.DBError("update extract job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.DBError("update extract job", err)
	}
	if n == 0 {
		return common.NewNotFound(fmt.Sprintf("extract job %s not found", jobID))
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	q, args := r.db.builder().
		Select(jobColumns...).
		From(r.db.builder().Table(TableExtractJobs)).
		Where(entsql.EQ("id", jobID)).
		Query()
	jobs, err := r.scan(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.NewNotFound(fmt.Sprintf("extract job %s not found", jobID))
	}
	return &jobs[0], nil
}

func (r *extractJobRepo) List(ctx context.Context, f JobFilter) ([]entity.ExtractJob, error) {
	var preds []*entsql.Predicate
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.NeedsReview != nil {
		preds = append(preds, entsql.EQ("needs_review", *f.NeedsReview))
	}
	s := r.db.builder().
		Select(jobColumns...).
		From(r.db.builder().Table(TableExtractJobs)).
		OrderBy(entsql.Desc("started_at"))
	if len(preds) > 0 {
		s = s.Where(entsql.And(preds...))
	}
	if f.Limit > 0 {
		s = s.Limit(f.Limit)
	}
	q, args := s.Query()
	return r.scan(ctx, q, args)
}

func (r *extractJobRepo) scan(ctx context.Context, q string, args []any) ([]entity.ExtractJob, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, common.DBError("query extract jobs", err)
	}
	defer rows.Close()

	var out []entity.ExtractJob
	for rows.Next() {
		var (
			j        entity.ExtractJob
			errMsg   sql.NullString
			finished sql.NullTime
			result   sql.NullString
		)
		if err := rows.Scan(
			&j.ID, &j.SourceName, &j.ContentHash, &j.Format, &j.Status, &errMsg,
			&j.StartedAt, &finished, &j.NeedsReview, &result, &j.ModelVersion,
		); err != nil {
			return nil, common.DBError("scan extract job", err)
		}
		if errMsg.Valid {
			j.ErrorMessage = &errMsg.String
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		if result.Valid && result.String != "" {
			j.ResultJSON = []byte(result.String)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DBError("iterate extract jobs", err)
	}
	return out, nil
}
