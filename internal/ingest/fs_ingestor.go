package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
)

// DefaultMaxFileBytes caps a single ingested file.
const DefaultMaxFileBytes = 50 << 20

// FSIngestor reads contracts from the local filesystem and submits them.
// Content already submitted by this ingestor is skipped.
type FSIngestor struct {
	submitter Submitter
	logger    *slog.Logger
	maxBytes  int64

	mu   sync.Mutex
	seen map[string]string // content hash -> job id
}

func NewFSIngestor(s Submitter, logger *slog.Logger, maxBytes int64) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &FSIngestor{
		submitter: s,
		logger:    logger,
		maxBytes:  maxBytes,
		seen:      map[string]string{},
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}
	out.Format = constants.MapExtToFormat(ext)

	info, err := os.Stat(abs)
	if err != nil {
		return out, fmt.Errorf("stat: %w", err)
	}
	if info.Size() > i.maxBytes {
		return out, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), i.maxBytes)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	out.HashHex = core.ContentHash(data)

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.JobID = id
		out.Deduplicated = true
		i.logger.Debug("ingest.dedup", "path", abs, "hash", out.HashHex, "job_id", id)
		return out, nil
	}
	i.mu.Unlock()

	jobID, err := i.submitter.Submit(ctx, core.Request{Data: data, Name: filepath.Base(abs)})
	if err != nil {
		return out, fmt.Errorf("submit: %w", err)
	}
	out.JobID = jobID.String()

	i.mu.Lock()
	i.seen[out.HashHex] = out.JobID
	i.mu.Unlock()

	i.logger.Info("ingest.submitted", "path", abs, "format", out.Format, "job_id", out.JobID)
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		switch classify(root, path, d, skipHidden) {
		case walkSkipDir:
			return filepath.SkipDir
		case walkIgnore, walkDescend:
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}
