// Package fields pulls contract fields out of recovered text with ordered,
// first-match-wins pattern rules: anchored and positional dates, renewal
// clauses and payment tokens.
package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/contracts-tracker/internal/dates"
)

// Sources recorded on date matches.
const (
	SourceAnchorPrefix = "anchor:"
	SourcePositional   = "positional"
)

// DefaultStartAnchors are tried in order for the start date.
var DefaultStartAnchors = []string{
	"start date",
	"effective date",
	"commencement date",
	"commences on",
	"valid from",
	"begins on",
	"arrival date",
}

// DefaultEndAnchors are tried in order for the end date.
var DefaultEndAnchors = []string{
	"end date",
	"termination date",
	"expiration date",
	"expiry date",
	"expires on",
	"valid until",
	"ends on",
}

// DefaultRenewalKeywords are tried in order for the renewal clause.
var DefaultRenewalKeywords = []string{
	"auto-renewal",
	"renewal terms",
	"valid until",
	"termination notice",
	"validity period",
	"initial term",
	"extension",
	"renewable for",
	"subscription period",
	"renewal clause",
	"automatic renewal",
	"automatically renew",
}

var (
	// sentence end inside an anchor window; "Jan. 5" is not an end.
	reWindowEnd = regexp.MustCompile(`[;!?]|\.\s+[A-Z]`)
	// sentence end for renewal capture; dotted dates are kept whole.
	reClauseEnd = regexp.MustCompile(`\.(?:\s|$)|\n`)
	rePayment   = regexp.MustCompile(`[$€£]\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?|\b\d+(?:[.,]\d+)?\s?%`)
)

type keyword struct {
	name string
	re   *regexp.Regexp
}

func compileKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		out = append(out, keyword{
			name: w,
			re:   regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
		})
	}
	return out
}

// Result is the raw output of one extraction pass. Empty matches mean "not found".
type Result struct {
	StartDate      Match
	EndDate        Match
	RenewalTerms   Match
	PaymentTokens  []string
	PaymentDetails string // tokens joined with ", "
}

// Extractor holds the compiled vocabularies. It is immutable and safe for concurrent use.
type Extractor struct {
	startAnchors []keyword
	endAnchors   []keyword
	renewal      []keyword
}

type Option func(*options)

type options struct {
	start, end, renewal []string
}

// WithStartAnchors replaces the start-date anchor list.
func WithStartAnchors(anchors ...string) Option {
	return func(o *options) { o.start = anchors }
}

// WithEndAnchors replaces the end-date anchor list.
func WithEndAnchors(anchors ...string) Option {
	return func(o *options) { o.end = anchors }
}

// WithRenewalKeywords replaces the renewal vocabulary.
func WithRenewalKeywords(words ...string) Option {
	return func(o *options) { o.renewal = words }
}

func New(opts ...Option) *Extractor {
	o := options{
		start:   DefaultStartAnchors,
		end:     DefaultEndAnchors,
		renewal: DefaultRenewalKeywords,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Extractor{
		startAnchors: compileKeywords(o.start),
		endAnchors:   compileKeywords(o.end),
		renewal:      compileKeywords(o.renewal),
	}
}

// Extract runs every field ladder over text.
func (e *Extractor) Extract(text string) Result {
	positional := positionalCandidates(text)

	startLadder := Ladder{anchorRule(e.startAnchors), positionalRule(positional, 0)}
	endLadder := Ladder{anchorRule(e.endAnchors), positionalRule(positional, 1)}

	res := Result{
		StartDate:    startLadder.First(text),
		EndDate:      endLadder.First(text),
		RenewalTerms: e.renewalLadder().First(text),
	}
	res.PaymentTokens = PaymentTokens(text)
	res.PaymentDetails = strings.Join(res.PaymentTokens, ", ")
	return res
}

// anchorRule finds the first anchor whose trailing window holds a parseable date token.
func anchorRule(anchors []keyword) Rule {
	return func(text string) (Match, bool) {
		for _, a := range anchors {
			for _, loc := range a.re.FindAllStringIndex(text, -1) {
				window := trailingWindow(text[loc[1]:])
				for _, tok := range DateTokens(window) {
					if _, ok := dates.Normalize(tok.Text); ok {
						return Match{Raw: tok.Text, Source: SourceAnchorPrefix + a.name}, true
					}
				}
			}
		}
		return Match{}, false
	}
}

func trailingWindow(rest string) string {
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	if loc := reWindowEnd.FindStringIndex(rest); loc != nil {
		rest = rest[:loc[0]+1]
	}
	return rest
}

func positionalCandidates(text string) []string {
	var out []string
	for _, tok := range DateTokens(text) {
		if _, ok := dates.Normalize(tok.Text); ok {
			out = append(out, tok.Text)
		}
	}
	return out
}

func positionalRule(candidates []string, idx int) Rule {
	return func(string) (Match, bool) {
		if idx >= len(candidates) {
			return Match{}, false
		}
		return Match{Raw: candidates[idx], Source: SourcePositional}, true
	}
}

func (e *Extractor) renewalLadder() Ladder {
	rules := make(Ladder, 0, len(e.renewal))
	for _, kw := range e.renewal {
		rules = append(rules, renewalRule(kw))
	}
	return rules
}

// renewalRule captures the keyword and the rest of its sentence.
func renewalRule(kw keyword) Rule {
	return func(text string) (Match, bool) {
		loc := kw.re.FindStringIndex(text)
		if loc == nil {
			return Match{}, false
		}
		end := len(text)
		if cut := reClauseEnd.FindStringIndex(text[loc[1]:]); cut != nil {
			end = loc[1] + cut[0]
		}
		clause := Clean(text[loc[0]:end])
		if clause == "" {
			return Match{}, false
		}
		return Match{Raw: clause, Source: kw.name}, true
	}
}

// PaymentTokens returns currency amounts and percentages in order of appearance.
func PaymentTokens(text string) []string {
	return rePayment.FindAllString(text, -1)
}
