package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob is one extraction attempt recorded by a host.
type ExtractJob struct {
	ID           uuid.UUID       `json:"id"`
	SourceName   string          `json:"source_name"`
	ContentHash  string          `json:"content_hash"`
	Format       string          `json:"format"`
	Status       string          `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	NeedsReview  bool            `json:"needs_review"`
	ResultJSON   json.RawMessage `json:"result,omitempty"`
	ModelVersion string          `json:"model_version"`
}

// Done reports whether the job reached a terminal status.
func (j *ExtractJob) Done() bool {
	return j.FinishedAt != nil
}
