// Package pipeline runs one contract document through text recovery, entity
// recognition, party normalization, field extraction and result assembly.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/fields"
	"github.com/joseph-ayodele/contracts-tracker/internal/metrics"
	"github.com/joseph-ayodele/contracts-tracker/internal/ner"
	"github.com/joseph-ayodele/contracts-tracker/internal/parties"
	"github.com/joseph-ayodele/contracts-tracker/internal/recovery"
)

// TextRecoverer turns a document into plain text.
type TextRecoverer interface {
	Recover(ctx context.Context, doc recovery.Document) (recovery.Result, error)
}

// EntityExtractor returns ORG and PERSON mentions in order of appearance.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]ner.Mention, error)
}

// Pipeline is reentrant; all of its collaborators are read-only after construction.
type Pipeline struct {
	recoverer  TextRecoverer
	entities   EntityExtractor
	normalizer *parties.Normalizer
	fields     *fields.Extractor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	minConf    float32
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithNormalizer(n *parties.Normalizer) Option {
	return func(p *Pipeline) {
		if n != nil {
			p.normalizer = n
		}
	}
}

func WithFieldExtractor(e *fields.Extractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.fields = e
		}
	}
}

// WithMinImageConfidence sets the OCR confidence below which image results need review.
func WithMinImageConfidence(c float32) Option {
	return func(p *Pipeline) {
		if c > 0 {
			p.minConf = c
		}
	}
}

func New(rec TextRecoverer, entities EntityExtractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		recoverer:  rec,
		entities:   entities,
		normalizer: parties.NewNormalizer(),
		fields:     fields.New(),
		logger:     slog.Default(),
		minConf:    constants.ImageConfidenceThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run extracts one document. The only error is a *recovery.RecoveryError (or a
// misconfiguration surfaced by the recoverer); every other shortfall is encoded
// in the result as "Not found", null dates, warnings and NeedsReview.
func (p *Pipeline) Run(ctx context.Context, doc recovery.Document) (ExtractionResult, error) {
	logger := common.LoggerFromContext(ctx, p.logger)

	t0 := time.Now()
	rec, err := p.recoverer.Recover(ctx, doc)
	p.metrics.ObserveStage("recovery", time.Since(t0))
	if err != nil {
		p.metrics.IncOutcome("recovery_failed")
		logger.Error("pipeline.recovery.failed", "name", doc.Name, "format", doc.Format, "err", err)
		return ExtractionResult{}, err
	}

	var warnings []string
	if rec.Text == "" {
		warnings = append(warnings, WarnNoTextRecovered)
	}

	t1 := time.Now()
	mentions, err := p.entities.Extract(ctx, rec.Text)
	p.metrics.ObserveStage("entities", time.Since(t1))
	if err != nil {
		logger.Warn("pipeline.entities.failed", "name", doc.Name, "err", err)
		warnings = append(warnings, WarnEntityRecognitionFailed)
		mentions = nil
	}
	names := p.normalizer.Normalize(ner.Texts(mentions))

	t2 := time.Now()
	fr := p.fields.Extract(rec.Text)
	p.metrics.ObserveStage("fields", time.Since(t2))

	lowConf := rec.Format == constants.IMAGE && rec.Confidence > 0 && rec.Confidence < p.minConf
	if lowConf {
		logger.Warn("pipeline.ocr.low_confidence", "name", doc.Name, "confidence", rec.Confidence)
	}

	t3 := time.Now()
	out := Assemble(AssemblyInput{
		Parties:       names,
		Fields:        fr,
		Warnings:      warnings,
		LowConfidence: lowConf,
	})
	p.metrics.ObserveStage("assemble", time.Since(t3))

	p.recordFields(out, fr)
	p.metrics.IncOutcome("ok")
	logger.Info("pipeline.extract.ok",
		"name", doc.Name,
		"format", rec.Format,
		"method", rec.Method,
		"pages", rec.Pages,
		"parties", len(out.PartyNames),
		"start_date", deref(out.StartDate),
		"end_date", deref(out.EndDate),
		"needs_review", out.NeedsReview,
	)
	return out, nil
}

func (p *Pipeline) recordFields(out ExtractionResult, fr fields.Result) {
	if p.metrics == nil {
		return
	}
	p.metrics.IncField("start_date", presence(out.StartDate != nil))
	switch {
	case out.Provenance.EndDate == SourceInferred:
		p.metrics.IncField("end_date", "inferred")
	case out.EndDate != nil:
		p.metrics.IncField("end_date", "found")
	case fr.EndDate.Found() && out.HasWarning(WarnEndDateDiscarded):
		p.metrics.IncField("end_date", "discarded")
	default:
		p.metrics.IncField("end_date", "not_found")
	}
	p.metrics.IncField("renewal_terms", presence(out.RenewalTerms != NotFound))
	p.metrics.IncField("payment_details", presence(out.PaymentDetails != NotFound))
	p.metrics.IncField("party_names", presence(len(out.PartyNames) > 0))
}

func presence(ok bool) string {
	if ok {
		return "found"
	}
	return "not_found"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
