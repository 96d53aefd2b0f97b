package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/entity"
)

type NotificationRepository interface {
	// Schedule creates or moves the reminder for a job and resets it to unsent.
	Schedule(ctx context.Context, jobID uuid.UUID, notifyOn string) (*entity.Notification, error)
	// ListDue returns unsent reminders on or before day (YYYY-MM-DD), oldest first.
	ListDue(ctx context.Context, day string) ([]entity.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

type notificationRepo struct {
	db  *DB
	log *slog.Logger
}

func NewNotificationRepository(db *DB, log *slog.Logger) NotificationRepository {
	if log == nil {
		log = slog.Default()
	}
	return &notificationRepo{db: db, log: log}
}

func (r *notificationRepo) Schedule(ctx context.Context, jobID uuid.UUID, notifyOn string) (*entity.Notification, error) {
	q, args := r.db.builder().
		Insert(TableNotifications).
		Columns("id", "job_id", "notify_on", "sent", "created_at").
		Values(uuid.New(), jobID, notifyOn, false, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("job_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("notify_on")
				u.Set("sent", false)
			}),
		).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.log.Error("notification schedule failed", "job_id", jobID, "err", err)
		return nil, common.DBError("schedule notification", err)
	}

	b := r.db.builder()
	n := b.Table(TableNotifications)
	q, args = b.Select(notificationColumnsOf(n)...).
		From(n).
		Where(entsql.EQ(n.C("job_id"), jobID)).
		Query()
	out, err := r.scan(ctx, q, args, false)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.NewNotFound(fmt.Sprintf("notification for job %s not found", jobID))
	}
	r.log.Info("notification scheduled", "job_id", jobID, "notify_on", notifyOn)
	return &out[0], nil
}

func (r *notificationRepo) ListDue(ctx context.Context, day string) ([]entity.Notification, error) {
	b := r.db.builder()
	n := b.Table(TableNotifications).As("n")
	j := b.Table(TableExtractJobs).As("j")
	cols := append(notificationColumnsOf(n), j.C("source_name"))
	q, args := b.Select(cols...).
		From(n).
		Join(j).On(n.C("job_id"), j.C("id")).
		Where(entsql.And(
			entsql.LTE(n.C("notify_on"), day),
			entsql.EQ(n.C("sent"), false),
		)).
		OrderBy(n.C("notify_on"), n.C("created_at")).
		Query()
	return r.scan(ctx, q, args, true)
}

func (r *notificationRepo) MarkSent(ctx context.Context, id uuid.UUID) error {
	q, args := r.db.builder().
		Update(TableNotifications).
		Set("sent", true).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		return common.DBError("mark notification sent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.DBError("mark notification sent", err)
	}
	if n == 0 {
		return common.NewNotFound(fmt.Sprintf("notification %s not found", id))
	}
	return nil
}

func notificationColumnsOf(t *entsql.SelectTable) []string {
	return []string{t.C("id"), t.C("job_id"), t.C("notify_on"), t.C("sent"), t.C("created_at")}
}

func (r *notificationRepo) scan(ctx context.Context, q string, args []any, withSource bool) ([]entity.Notification, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		return nil, common.DBError("query notifications", err)
	}
	defer rows.Close()

	var out []entity.Notification
	for rows.Next() {
		var n entity.Notification
		dest := []any{&n.ID, &n.JobID, &n.NotifyOn, &n.Sent, &n.CreatedAt}
		if withSource {
			dest = append(dest, &n.SourceName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, common.DBError("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DBError("iterate notifications", err)
	}
	return out, nil
}
