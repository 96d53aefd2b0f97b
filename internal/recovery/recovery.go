// Package recovery turns a contract document of any supported format into plain text.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/ocr"
)

// PageSeparator joins the text of consecutive PDF pages.
const PageSeparator = "\n\f\n"

// Document is an uploaded contract. It is never mutated.
type Document struct {
	Data   []byte
	Format string // constants.PDF | IMAGE | DOC | UNKNOWN
	Name   string // original filename, used for the image extension and logs
}

// Result is the recovered text plus diagnostics about how it was obtained.
type Result struct {
	Text       string
	Format     string
	Method     string // "pdf-text" | "image-ocr" | "docx" | "none"
	Pages      int
	Duration   time.Duration
	Confidence float32 // OCR confidence; zero for text-layer formats
	Warnings   []string
}

// RecoveryError reports that a document could not be decoded at all.
type RecoveryError struct {
	Format string
	Cause  error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recover %s text: %v", e.Format, e.Cause)
}

func (e *RecoveryError) Unwrap() error { return e.Cause }

// IsRecoveryError reports whether err carries a *RecoveryError.
func IsRecoveryError(err error) bool {
	var re *RecoveryError
	return errors.As(err, &re)
}

// PageReader returns per-page PDF text layers in page order.
type PageReader interface {
	PDFPages(ctx context.Context, data []byte) ([]string, error)
}

// ImageOCR runs one OCR pass over a raster image.
type ImageOCR interface {
	ImageText(ctx context.Context, data []byte, ext string) (ocr.ImageResult, error)
}

// ParagraphReader returns word-processor paragraphs in document order.
type ParagraphReader interface {
	Paragraphs(ctx context.Context, data []byte) ([]string, error)
}

// Recoverer dispatches on document format. It holds no per-document state.
type Recoverer struct {
	pdf    PageReader
	image  ImageOCR
	doc    ParagraphReader
	logger *slog.Logger
}

func New(pdf PageReader, image ImageOCR, doc ParagraphReader, logger *slog.Logger) *Recoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recoverer{pdf: pdf, image: image, doc: doc, logger: logger}
}

// RecoverText returns only the text of Recover.
func (r *Recoverer) RecoverText(ctx context.Context, doc Document) (string, error) {
	res, err := r.Recover(ctx, doc)
	return res.Text, err
}

// Recover extracts text according to doc.Format. Unknown formats yield empty
// text without error; decoding failures return a *RecoveryError.
func (r *Recoverer) Recover(ctx context.Context, doc Document) (Result, error) {
	start := time.Now()
	format := doc.Format
	if format == "" {
		format = constants.UNKNOWN
	}
	r.logger.Debug("recovery.start", "format", format, "name", doc.Name, "bytes", len(doc.Data))

	var (
		res Result
		err error
	)
	switch format {
	case constants.PDF:
		res, err = r.recoverPDF(ctx, doc)
	case constants.IMAGE:
		res, err = r.recoverImage(ctx, doc)
	case constants.DOC:
		res, err = r.recoverDoc(ctx, doc)
	default:
		r.logger.Warn("recovery.unsupported_format", "format", format, "name", doc.Name)
		res = Result{Method: "none", Warnings: []string{"unsupported format: " + format}}
	}
	res.Format = format
	res.Duration = time.Since(start)

	if err != nil {
		r.logger.Error("recovery.failed", "format", format, "name", doc.Name, "error", err)
		return res, &RecoveryError{Format: format, Cause: err}
	}
	r.logger.Debug("recovery.ok",
		"format", format,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (r *Recoverer) recoverPDF(ctx context.Context, doc Document) (Result, error) {
	if r.pdf == nil {
		return Result{}, errors.New("no PDF reader configured")
	}
	pages, err := r.pdf.PDFPages(ctx, doc.Data)
	if err != nil {
		return Result{}, err
	}
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = ocr.Normalize(p); p != "" {
			kept = append(kept, p)
		}
	}
	res := Result{
		Text:   strings.Join(kept, PageSeparator),
		Method: "pdf-text",
		Pages:  len(pages),
	}
	if blank := len(pages) - len(kept); blank > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d pages had no text layer", blank, len(pages)))
	}
	return res, nil
}

func (r *Recoverer) recoverImage(ctx context.Context, doc Document) (Result, error) {
	if r.image == nil {
		return Result{}, errors.New("no OCR engine configured")
	}
	ext := constants.NormalizeExt(filepath.Ext(doc.Name))
	if ext == "" {
		ext = "png"
	}
	out, err := r.image.ImageText(ctx, doc.Data, ext)
	if err != nil {
		return Result{Warnings: out.Warnings}, err
	}
	return Result{
		Text:       ocr.Normalize(out.Text),
		Method:     "image-ocr",
		Pages:      1,
		Confidence: out.Confidence,
		Warnings:   out.Warnings,
	}, nil
}

func (r *Recoverer) recoverDoc(ctx context.Context, doc Document) (Result, error) {
	if r.doc == nil {
		return Result{}, errors.New("no document reader configured")
	}
	paras, err := r.doc.Paragraphs(ctx, doc.Data)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:   ocr.Normalize(strings.Join(paras, "\n")),
		Method: "docx",
		Pages:  1,
	}, nil
}
