package server

import (
	"log/slog"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/docx"
	"github.com/joseph-ayodele/contracts-tracker/internal/metrics"
	"github.com/joseph-ayodele/contracts-tracker/internal/ner"
	"github.com/joseph-ayodele/contracts-tracker/internal/ocr"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	"github.com/joseph-ayodele/contracts-tracker/internal/recovery"
)

// BuildPipeline loads the entity model once and assembles the extraction
// pipeline every host shares. The model name doubles as the cache key version.
func BuildPipeline(cfg *common.Config, logger *slog.Logger, m *metrics.Metrics) (*pipeline.Pipeline, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	model, err := ner.Load(ner.Config{URL: cfg.NER.URL, Timeout: cfg.NER.Timeout}, logger)
	if err != nil {
		return nil, "", err
	}

	engine := ocr.NewEngine(ocr.Config{
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		HeicConverter:       cfg.OCR.HeicConverter,
		EnableTSVConfidence: cfg.OCR.EnableTSVConfidence,
		ArtifactCacheDir:    cfg.OCR.ArtifactCacheDir,
		CommandTimeout:      cfg.OCR.CommandTimeout,
	}, logger)
	rec := recovery.New(engine, engine, docx.NewReader(), logger)

	p := pipeline.New(rec, model,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithMinImageConfidence(constants.ImageConfidenceThreshold),
	)
	return p, model.Name(), nil
}
