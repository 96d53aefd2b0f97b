package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`\b\d{1,4}[./-]\d{1,2}[./-]\d{2,4}\b|\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2}`)
	reMoney   = regexp.MustCompile(`\b(usd|eur|gbp)\b|[$£€]|\d\s?%`)
	reClauses = regexp.MustCompile(`\b(agreement|party|parties|term|contract|hereby)\b`)
)

// heuristicConfidence scores OCR output by the contract signals it contains.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reMoney.MatchString(txtL) {
		score += 0.15
	}
	if reClauses.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
