package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name)

	db, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background(), 0))
}

func TestExtractJobLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(newTestDB(t), nil)

	job, err := repo.Start(ctx, NewJob{
		SourceName:   "lease.pdf",
		ContentHash:  "abc",
		Format:       constants.PDF,
		Status:       constants.JobStatusQueued,
		ModelVersion: "rules-v1",
	})
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusQueued), job.Status)

	require.NoError(t, repo.MarkRunning(ctx, job.ID))
	require.NoError(t, repo.FinishSuccess(ctx, job.ID, []byte(`{"party_names":["Acme Corp"]}`), true))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "lease.pdf", got.SourceName)
	assert.Equal(t, string(constants.JobStatusOK), got.Status)
	assert.True(t, got.NeedsReview)
	assert.True(t, got.Done())
	assert.Nil(t, got.ErrorMessage)
	assert.JSONEq(t, `{"party_names":["Acme Corp"]}`, string(got.ResultJSON))
	assert.Equal(t, "rules-v1", got.ModelVersion)
}

func TestExtractJobFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(newTestDB(t), nil)

	job, err := repo.Start(ctx, NewJob{SourceName: "scan.png", ContentHash: "def", Format: constants.IMAGE})
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunning), job.Status)

	require.NoError(t, repo.FinishFailure(ctx, job.ID, "recover IMAGE text: tesseract missing"))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "tesseract")
	assert.Nil(t, got.ResultJSON)
}

func TestExtractJobNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(newTestDB(t), nil)

	_, err := repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.MarkRunning(ctx, uuid.New()), common.ErrNotFound)
}

func TestExtractJobList(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(newTestDB(t), nil)

	a, err := repo.Start(ctx, NewJob{SourceName: "a.pdf", ContentHash: "a", Format: constants.PDF})
	require.NoError(t, err)
	b, err := repo.Start(ctx, NewJob{SourceName: "b.pdf", ContentHash: "b", Format: constants.PDF})
	require.NoError(t, err)
	_, err = repo.Start(ctx, NewJob{SourceName: "c.pdf", ContentHash: "c", Format: constants.PDF})
	require.NoError(t, err)

	require.NoError(t, repo.FinishSuccess(ctx, a.ID, []byte(`{}`), true))
	require.NoError(t, repo.FinishSuccess(ctx, b.ID, []byte(`{}`), false))

	all, err := repo.List(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	review := true
	flagged, err := repo.List(ctx, JobFilter{Status: string(constants.JobStatusOK), NeedsReview: &review})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, a.ID, flagged[0].ID)

	limited, err := repo.List(ctx, JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestNotificationScheduleAndDue(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	jobs := NewExtractJobRepository(db, nil)
	notes := NewNotificationRepository(db, nil)

	j1, err := jobs.Start(ctx, NewJob{SourceName: "lease.pdf", ContentHash: "1", Format: constants.PDF})
	require.NoError(t, err)
	j2, err := jobs.Start(ctx, NewJob{SourceName: "saas.docx", ContentHash: "2", Format: constants.DOC})
	require.NoError(t, err)

	n1, err := notes.Schedule(ctx, j1.ID, "2025-01-01")
	require.NoError(t, err)
	assert.Equal(t, j1.ID, n1.JobID)
	assert.False(t, n1.Sent)

	_, err = notes.Schedule(ctx, j2.ID, "2025-06-01")
	require.NoError(t, err)

	due, err := notes.ListDue(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, n1.ID, due[0].ID)
	assert.Equal(t, "lease.pdf", due[0].SourceName)

	require.NoError(t, notes.MarkSent(ctx, n1.ID))
	due, err = notes.ListDue(ctx, "2025-03-01")
	require.NoError(t, err)
	assert.Empty(t, due)

	// rescheduling moves the date and re-arms the reminder
	moved, err := notes.Schedule(ctx, j1.ID, "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, n1.ID, moved.ID)
	assert.Equal(t, "2025-02-01", moved.NotifyOn)
	assert.False(t, moved.Sent)

	due, err = notes.ListDue(ctx, "2025-12-31")
	require.NoError(t, err)
	assert.Len(t, due, 2)
	assert.Equal(t, "2025-02-01", due[0].NotifyOn)
}

func TestNotificationMarkSentNotFound(t *testing.T) {
	notes := NewNotificationRepository(newTestDB(t), nil)
	assert.ErrorIs(t, notes.MarkSent(context.Background(), uuid.New()), common.ErrNotFound)
}
