// Package ocr wraps the poppler and tesseract command-line tools used to
// recover text from PDF text layers and raster images.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string // heif-convert | magick | sips
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	ArtifactCacheDir string

	CommandTimeout time.Duration // 0 = bounded only by the caller's context
}

// ImageResult is the outcome of one OCR pass over an image.
type ImageResult struct {
	Text       string
	Language   string
	Confidence float32
	Warnings   []string
}

// Engine runs the external tools. It holds no per-document state.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Engine)

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewEngine(cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	e := &Engine{cfg: cfg, runner: ExecRunner{Timeout: cfg.CommandTimeout}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// PDFPages returns the text layer of each page in order. Pages without a
// text layer come back as empty strings.
func (e *Engine) PDFPages(ctx context.Context, data []byte) ([]string, error) {
	path, cleanup, err := writeTemp(data, "ct-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	// A form-feed \f is used as page separator; the last one is trailing.
	pages := strings.Split(strings.TrimSuffix(string(out), "\f"), "\f")
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}
	return pages, nil
}

// ImageText runs one tesseract pass over an image. HEIC/HEIF input is converted to PNG first.
func (e *Engine) ImageText(ctx context.Context, data []byte, ext string) (ImageResult, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "png"
	}
	path, cleanup, err := writeTemp(data, "ct-img-*."+ext)
	if err != nil {
		return ImageResult{}, err
	}
	defer cleanup()

	var warns []string
	if constants.IsHEICExt(ext) {
		hashHex, _ := contentHashFromCtx(ctx)
		out, w, c, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hashHex)
		warns = append(warns, w...)
		if c != nil {
			defer c()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "error", err)
			return ImageResult{Warnings: warns}, err
		}
		path = out
	}

	txt, w, err := e.tesseractOCR(ctx, path)
	warns = append(warns, w...)
	if err != nil {
		return ImageResult{Warnings: warns}, err
	}
	txt = Normalize(txt)

	var ocrConf float32
	if e.cfg.EnableTSVConfidence {
		if c, w, err := e.tesseractTSVConfidence(ctx, path); err == nil {
			ocrConf = c
			warns = append(warns, w...)
		} else {
			warns = append(warns, err.Error())
		}
	}
	heurConf := heuristicConfidence(txt)

	// blend: weight OCR higher if present
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}

	return ImageResult{
		Text:       txt,
		Language:   e.cfg.TesseractLang,
		Confidence: conf,
		Warnings:   warns,
	}, nil
}

func writeTemp(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
