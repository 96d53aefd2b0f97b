package pipeline

// NotFound marks a text field with no match.
const NotFound = "Not found"

// Provenance values for dates.
const (
	SourceInferred = "inferred"
)

// Warning codes carried on ExtractionResult.Warnings.
const (
	WarnEndDateDiscarded        = "end_date_discarded"
	WarnEntityRecognitionFailed = "entity_recognition_failed"
	WarnLowOCRConfidence        = "low_ocr_confidence"
	WarnNoTextRecovered         = "no_text_recovered"
)

// Provenance records which rule produced each field.
type Provenance struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	RenewalTerms string `json:"renewal_terms"`
}

// ExtractionResult is the structured record for one document. It carries no
// timestamps or ids, so the same document always yields the same value.
type ExtractionResult struct {
	PartyNames     []string   `json:"party_names"`
	StartDate      *string    `json:"start_date"`
	EndDate        *string    `json:"end_date"`
	RenewalTerms   string     `json:"renewal_terms"`
	PaymentDetails string     `json:"payment_details"`
	Provenance     Provenance `json:"provenance"`
	Warnings       []string   `json:"warnings"`
	NeedsReview    bool       `json:"needs_review"`
}

// HasWarning reports whether code is among the result warnings.
func (r ExtractionResult) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w == code {
			return true
		}
	}
	return false
}
