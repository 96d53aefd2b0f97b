//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

func newPostgresDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("contracts"),
		tcpostgres.WithUsername("contracts"),
		tcpostgres.WithPassword("contracts"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, Config{Driver: DriverPostgres, DSN: dsn, MaxConns: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	// Migrating twice must be a no-op.
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestPostgresJobsAndReminders(t *testing.T) {
	ctx := context.Background()
	db := newPostgresDB(t)
	jobs := NewExtractJobRepository(db, nil)
	reminders := NewNotificationRepository(db, nil)

	job, err := jobs.Start(ctx, NewJob{
		SourceName:  "lease.pdf",
		ContentHash: "abc",
		Format:      constants.PDF,
		Status:      constants.JobStatusRunning,
	})
	require.NoError(t, err)
	require.NoError(t, jobs.FinishSuccess(ctx, job.ID, []byte(`{"end_date":"2024-12-31"}`), false))

	_, err = reminders.Schedule(ctx, job.ID, "2024-12-01")
	require.NoError(t, err)

	due, err := reminders.ListDue(ctx, "2024-12-15")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "lease.pdf", due[0].SourceName)
	assert.Equal(t, "2024-12-01", due[0].NotifyOn)

	require.NoError(t, reminders.MarkSent(ctx, due[0].ID))
	due, err = reminders.ListDue(ctx, "2024-12-15")
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = jobs.Get(ctx, uuid.New())
	assert.Error(t, err)
}
