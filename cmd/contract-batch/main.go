package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/core"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/schema"
	svc "github.com/joseph-ayodele/contracts-tracker/internal/server"
)

const inMemoryDSN = "file:contract-batch?mode=memory&cache=shared&_pragma=foreign_keys(1)"

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory to process contracts from (required)")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		dbPath     = flag.String("db", "", "SQLite file to record jobs in (optional, in-memory when empty)")
		workers    = flag.Int("workers", 4, "documents processed concurrently")
		configPath = flag.String("config", "", "optional YAML config file")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *workers < 1 {
		printError("Error: --workers must be at least 1\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "contracts.xlsx")
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	cfg.Database.Driver = repo.DriverSQLite
	cfg.Database.DSN = inMemoryDSN
	if *dbPath != "" {
		cfg.Database.DSN = "file:" + *dbPath + "?_pragma=foreign_keys(1)"
	}
	logger := common.InitLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)
	jobsRepo := repo.NewExtractJobRepository(db, logger)

	pipe, modelVersion, err := svc.BuildPipeline(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to load entity model", "error", err)
		os.Exit(1)
	}
	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("failed to compile result schema", "error", err)
		os.Exit(1)
	}
	processor := core.NewProcessor(logger, pipe,
		core.WithModelVersion(modelVersion),
		core.WithValidator(validator),
		core.WithJobs(jobsRepo),
	)

	// Accept records each file up front; the group runs extraction with bounded concurrency.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	var processed, failures atomic.Int32

	submit := ingest.SubmitFunc(func(ctx context.Context, req core.Request) (uuid.UUID, error) {
		job, err := processor.Accept(ctx, req)
		if err != nil {
			return uuid.Nil, err
		}
		g.Go(func() error {
			if _, err := processor.ProcessJob(gctx, job.ID, req); err != nil {
				logger.Error("failed to process file", "job_id", job.ID, "source", req.Name, "error", err)
				failures.Add(1)
				return nil
			}
			processed.Add(1)
			return nil
		})
		return job.ID, nil
	})

	ingestor := ingest.NewFSIngestor(submit, logger, int64(cfg.Server.MaxUploadMB)<<20)
	logger.Info("starting ingestion", "dir", *dir, "workers", *workers)
	_, stats, err := ingestor.IngestDirectory(gctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
	}
	_ = g.Wait()
	if err != nil {
		os.Exit(1)
	}

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(jobsRepo, logger).ExportJobsXLSX(ctx, repo.JobFilter{})
	if err != nil {
		logger.Error("failed to export contracts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"processed", processed.Load(),
		"failures", failures.Load(),
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files matched: %d\n", stats.Matched)
	fmt.Printf("- Files processed: %d\n", processed.Load())
	fmt.Printf("- Failures: %d\n", failures.Load()+int32(stats.Failed))
	fmt.Printf("- Output: %s\n", *out)
}
