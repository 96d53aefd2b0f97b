package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-tracker/internal/core"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath   string `json:"source_path"`
	JobID        string `json:"job_id,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
	HashHex      string `json:"content_hash,omitempty"`
	Format       string `json:"format,omitempty"`
	Err          string `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Submitter hands a document to extraction and returns its job id.
type Submitter interface {
	Submit(ctx context.Context, req core.Request) (uuid.UUID, error)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, req core.Request) (uuid.UUID, error)

func (f SubmitFunc) Submit(ctx context.Context, req core.Request) (uuid.UUID, error) {
	return f(ctx, req)
}

// Ingestor is the behavior the inbox watcher and CLIs depend on.
type Ingestor interface {
	// IngestPath submits a single file.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory submits all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
