// Package schema validates serialized extraction results against their JSON schema.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceName = "extraction_result.json"

// BuildResultJSONSchema returns the ExtractionResult schema as a generic map.
func BuildResultJSONSchema() map[string]any {
	date := map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
	text := map[string]any{"type": "string", "minLength": 1}
	source := map[string]any{"type": "string"}

	props := map[string]any{
		"party_names": map[string]any{
			"type":  "array",
			"items": text,
		},
		"start_date":      date,
		"end_date":        date,
		"renewal_terms":   text,
		"payment_details": text,
		"provenance": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"start_date":    source,
				"end_date":      source,
				"renewal_terms": source,
			},
		},
		"warnings": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"needs_review": map[string]any{"type": "boolean"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required": []string{
			"party_names", "start_date", "end_date",
			"renewal_terms", "payment_details", "needs_review",
		},
	}
}

// Validator holds a compiled schema and is safe for concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles BuildResultJSONSchema.
func NewValidator() (*Validator, error) {
	s, err := compile(BuildResultJSONSchema())
	if err != nil {
		return nil, err
	}
	return &Validator{schema: s}, nil
}

// Validate checks a serialized result.
func (v *Validator) Validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateValue marshals value and validates it.
func (v *Validator) ValidateValue(value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	return v.Validate(b)
}

func compile(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}
