package pipeline

import (
	"time"

	"github.com/joseph-ayodele/contracts-tracker/internal/dates"
	"github.com/joseph-ayodele/contracts-tracker/internal/fields"
)

// AssemblyInput is everything the assembler merges. Warnings are carried over
// from earlier stages.
type AssemblyInput struct {
	Parties       []string
	Fields        fields.Result
	Warnings      []string
	LowConfidence bool
}

// Assemble merges stage outputs into an ExtractionResult. It is pure.
//
// Dates are normalized and must satisfy start < end; a violating end is
// dropped and start is kept. End-date inference from the renewal clause runs
// only when direct extraction produced no end date, and its result is checked
// again. A dropped end date stays absent.
func Assemble(in AssemblyInput) ExtractionResult {
	out := ExtractionResult{
		PartyNames:     nonNil(in.Parties),
		RenewalTerms:   NotFound,
		PaymentDetails: NotFound,
		Warnings:       append([]string{}, in.Warnings...),
	}

	start, hasStart := normalized(in.Fields.StartDate)
	end, hasEnd := normalized(in.Fields.EndDate)
	extracted := hasEnd
	if hasStart {
		out.Provenance.StartDate = in.Fields.StartDate.Source
	}
	if hasEnd {
		out.Provenance.EndDate = in.Fields.EndDate.Source
	}

	if hasStart && hasEnd && !end.After(start) {
		hasEnd = false
		out.Provenance.EndDate = ""
		out.Warnings = append(out.Warnings, WarnEndDateDiscarded)
	}

	renewal := fields.Clean(in.Fields.RenewalTerms.Raw)
	if renewal != "" {
		out.RenewalTerms = renewal
		out.Provenance.RenewalTerms = in.Fields.RenewalTerms.Source
	}

	if hasStart && !extracted && renewal != "" {
		if inferred, ok := dates.InferEndDate(start, renewal); ok {
			if inferred.After(start) {
				end, hasEnd = inferred, true
				out.Provenance.EndDate = SourceInferred
			} else if !out.HasWarning(WarnEndDateDiscarded) {
				out.Warnings = append(out.Warnings, WarnEndDateDiscarded)
			}
		}
	}

	if hasStart {
		out.StartDate = ptr(dates.Format(start))
	}
	if hasEnd {
		out.EndDate = ptr(dates.Format(end))
	}

	if in.Fields.PaymentDetails != "" {
		out.PaymentDetails = in.Fields.PaymentDetails
	}

	if in.LowConfidence {
		out.Warnings = append(out.Warnings, WarnLowOCRConfidence)
	}

	out.NeedsReview = len(out.PartyNames) == 0 ||
		!hasStart ||
		out.HasWarning(WarnEndDateDiscarded) ||
		out.HasWarning(WarnEntityRecognitionFailed) ||
		out.HasWarning(WarnLowOCRConfidence)

	return out
}

func normalized(m fields.Match) (time.Time, bool) {
	if !m.Found() {
		return time.Time{}, false
	}
	return dates.Normalize(m.Raw)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ptr(s string) *string { return &s }
