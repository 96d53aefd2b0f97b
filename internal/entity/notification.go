package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a renewal reminder scheduled ahead of a contract end date.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	NotifyOn   string    `json:"notify_on"` // YYYY-MM-DD
	Sent       bool      `json:"sent"`
	CreatedAt  time.Time `json:"created_at"`
	SourceName string    `json:"source_name,omitempty"`
}
