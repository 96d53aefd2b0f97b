package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	"github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

const sheet = "Contracts"

// Row is one spreadsheet line. Result is nil for failed extractions.
type Row struct {
	JobID  string
	Source string
	Status string
	Result *pipeline.ExtractionResult
	Error  string
}

var headers = []string{
	"Source",
	"Status",
	"Parties",
	"Start Date",
	"End Date",
	"End Date Source",
	"Renewal Terms",
	"Payment Details",
	"Needs Review",
	"Warnings",
	"Error",
	"Job ID",
}

// Service produces XLSX bytes for job exports.
type Service struct {
	jobs   repository.ExtractJobRepository
	logger *slog.Logger
}

func NewService(jobs repository.ExtractJobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobsXLSX returns a workbook of the jobs matching f, newest first.
func (s *Service) ExportJobsXLSX(ctx context.Context, f repository.JobFilter) ([]byte, error) {
	start := time.Now()

	jobs, err := s.jobs.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	rows := make([]Row, 0, len(jobs))
	for _, j := range jobs {
		r := Row{JobID: j.ID.String(), Source: j.SourceName, Status: j.Status}
		if j.ErrorMessage != nil {
			r.Error = *j.ErrorMessage
		}
		if len(j.ResultJSON) > 0 {
			var res pipeline.ExtractionResult
			if err := json.Unmarshal(j.ResultJSON, &res); err != nil {
				s.logger.Warn("export.result.unreadable", "job_id", j.ID, "err", err)
			} else {
				r.Result = &res
			}
		}
		rows = append(rows, r)
	}

	b, err := BuildWorkbook(rows)
	if err != nil {
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// BuildWorkbook renders rows into a single-sheet XLSX workbook.
func BuildWorkbook(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range rows {
		line := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, line)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.Source)
		write(2, r.Status)
		if res := r.Result; res != nil {
			write(3, strings.Join(res.PartyNames, "; "))
			write(4, deref(res.StartDate))
			write(5, deref(res.EndDate))
			write(6, res.Provenance.EndDate)
			write(7, truncate(res.RenewalTerms, 140))
			write(8, res.PaymentDetails)
			write(9, yesNo(res.NeedsReview))
			write(10, strings.Join(res.Warnings, ", "))
		}
		write(11, truncate(r.Error, 140))
		write(12, r.JobID)
	}

	_ = f.SetColWidth(sheet, "A", "A", 32) // source
	_ = f.SetColWidth(sheet, "B", "B", 10) // status
	_ = f.SetColWidth(sheet, "C", "C", 40) // parties
	_ = f.SetColWidth(sheet, "D", "F", 14) // dates
	_ = f.SetColWidth(sheet, "G", "G", 48) // renewal
	_ = f.SetColWidth(sheet, "H", "H", 28) // payments
	_ = f.SetColWidth(sheet, "I", "I", 12)
	_ = f.SetColWidth(sheet, "J", "K", 36)
	_ = f.SetColWidth(sheet, "L", "L", 38)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
