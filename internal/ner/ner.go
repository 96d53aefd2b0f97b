// Package ner extracts organization and person mentions from contract text.
//
// A Model is loaded once at startup and shared read-only by every pipeline
// invocation. The recognizer behind it is either the built-in rule set or an
// HTTP sidecar serving a statistical tagger.
package ner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Category is the entity class kept by the pipeline.
type Category string

const (
	ORG    Category = "ORG"
	PERSON Category = "PERSON"
)

// Mention is an ORG or PERSON span found in text.
type Mention struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// Span is a raw recognizer hit before label filtering.
type Span struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Recognizer tags spans in text. Implementations must be deterministic for a given model.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}

// Config selects and tunes the recognizer.
type Config struct {
	URL     string // sidecar endpoint; empty selects the rule recognizer
	Timeout time.Duration
}

// Model is the immutable handle injected into the pipeline.
type Model struct {
	name string
	rec  Recognizer
}

// NewModel wraps a recognizer under a version name used for cache keys.
func NewModel(name string, rec Recognizer) *Model {
	return &Model{name: name, rec: rec}
}

// Load builds the process-wide model from cfg.
func Load(cfg Config, logger *slog.Logger) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.URL) == "" {
		logger.Info("ner.model.loaded", "model", RulesModelName)
		return NewModel(RulesModelName, NewRuleRecognizer()), nil
	}
	rec, err := NewHTTPRecognizer(cfg.URL, cfg.Timeout, logger)
	if err != nil {
		return nil, fmt.Errorf("ner sidecar: %w", err)
	}
	logger.Info("ner.model.loaded", "model", "http", "url", cfg.URL)
	return NewModel("http:"+cfg.URL, rec), nil
}

// Name identifies the model version.
func (m *Model) Name() string { return m.name }

// Extract runs one recognition pass and keeps ORG and PERSON mentions in text order.
func (m *Model) Extract(ctx context.Context, text string) ([]Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	spans, err := m.rec.Recognize(ctx, text)
	if err != nil {
		return nil, err
	}
	out := make([]Mention, 0, len(spans))
	for _, s := range spans {
		cat, ok := categoryFor(s.Label)
		if !ok || strings.TrimSpace(s.Text) == "" {
			continue
		}
		out = append(out, Mention{Text: s.Text, Category: cat})
	}
	return out, nil
}

// Texts returns the mention texts in order.
func Texts(mentions []Mention) []string {
	out := make([]string, len(mentions))
	for i, m := range mentions {
		out[i] = m.Text
	}
	return out
}

func categoryFor(label string) (Category, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "ORG", "ORGANIZATION", "ORGANISATION":
		return ORG, true
	case "PERSON", "PER":
		return PERSON, true
	}
	return "", false
}
