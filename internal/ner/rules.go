package ner

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

// RulesModelName is the version name of the built-in recognizer.
const RulesModelName = "rules-v1"

var (
	reOrg = regexp.MustCompile(
		`\b(?:[A-Z][A-Za-z0-9&'-]*[ \t]+){1,5}` +
			`(?:Incorporated|Corporation|Limited|Company|L\.L\.C|GmbH|Corp|Inc|LLC|LLP|Ltd|PLC|plc|Pty|SARL|S\.A|SRL|B\.V|AG|BV|NV|LP|SA|Co)\b`)
	rePersonHonorific = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?[ \t]+([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+){0,2})\b`)
	rePersonSigner    = regexp.MustCompile(`(?m)\b(?:Name|By|Signed by|Signatory)[ \t]*:[ \t]*([A-Z][a-z]+(?:[ \t]+[A-Z]\.)?(?:[ \t]+[A-Z][a-z]+){1,2})\b`)
)

// leading words a capitalised run may drag into an organization match
var orgStopwords = map[string]struct{}{
	"the": {}, "this": {}, "by": {}, "between": {}, "and": {}, "with": {},
	"from": {}, "for": {}, "to": {}, "of": {}, "party": {}, "client": {},
	"customer": {}, "supplier": {}, "vendor": {}, "agreement": {}, "contract": {},
}

// RuleRecognizer tags organizations by company suffix and persons by honorific
// or signature-block labels.
type RuleRecognizer struct{}

func NewRuleRecognizer() *RuleRecognizer { return &RuleRecognizer{} }

func (RuleRecognizer) Recognize(_ context.Context, text string) ([]Span, error) {
	var spans []Span
	for _, loc := range reOrg.FindAllStringIndex(text, -1) {
		start := trimStopwords(text, loc[0], loc[1])
		if start < loc[1] {
			spans = append(spans, Span{Text: text[start:loc[1]], Label: string(ORG), Start: start, End: loc[1]})
		}
	}
	for _, re := range []*regexp.Regexp{rePersonHonorific, rePersonSigner} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			spans = append(spans, Span{Text: text[m[2]:m[3]], Label: string(PERSON), Start: m[2], End: m[3]})
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })
	return dropOverlaps(spans), nil
}

func trimStopwords(text string, start, end int) int {
	for start < end {
		word := text[start:end]
		sp := strings.IndexAny(word, " \t")
		if sp < 0 {
			return start
		}
		if _, ok := orgStopwords[strings.ToLower(word[:sp])]; !ok {
			return start
		}
		start += sp
		for start < end && (text[start] == ' ' || text[start] == '\t') {
			start++
		}
	}
	return start
}

func dropOverlaps(spans []Span) []Span {
	out := spans[:0]
	lastEnd := -1
	for _, s := range spans {
		if s.Start < lastEnd {
			continue
		}
		out = append(out, s)
		lastEnd = s.End
	}
	return out
}
