package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/dates"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
	svc "github.com/joseph-ayodele/contracts-tracker/internal/server"
)

// remind prints renewal reminders that are due and marks them sent.
func main() {
	var (
		before     = flag.String("before", "", "report reminders due on or before YYYY-MM-DD (default today, UTC)")
		dryRun     = flag.Bool("dry-run", false, "print due reminders without marking them sent")
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
	)
	flag.Parse()

	day := *before
	if day == "" {
		day = dates.Format(time.Now().UTC())
	}
	if _, err := time.Parse(dates.Layout, day); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --before date, use YYYY-MM-DD: %v\n", err)
		os.Exit(2)
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stderr, cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)
	reminders := repo.NewNotificationRepository(db, logger)

	due, err := reminders.ListDue(ctx, day)
	if err != nil {
		logger.Error("failed to list due reminders", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	sent := 0
	for _, n := range due {
		if err := enc.Encode(n); err != nil {
			logger.Error("failed to write reminder", "id", n.ID, "error", err)
			os.Exit(1)
		}
		if *dryRun {
			continue
		}
		if err := reminders.MarkSent(ctx, n.ID); err != nil {
			logger.Error("failed to mark reminder sent", "id", n.ID, "error", err)
			continue
		}
		sent++
	}
	logger.Info("remind.done", "day", day, "due", len(due), "sent", sent, "dry_run", *dryRun)
}
