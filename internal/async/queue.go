package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/core"
)

// Job is one accepted document waiting for extraction.
type Job struct {
	ID          uuid.UUID
	Request     core.Request
	SubmittedAt time.Time
	RequestID   string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
