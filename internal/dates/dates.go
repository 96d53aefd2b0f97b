// Package dates turns raw date-shaped tokens into calendar dates and infers
// end dates from renewal durations.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical output form.
const Layout = "2006-01-02"

// Day counts used by InferEndDate. Flat approximations, not calendar arithmetic.
const (
	DaysPerMonth = 30
	DaysPerYear  = 365
)

// MaxYear is the last year Layout can render in four digits.
const MaxYear = 9999

// formats are tried in order; the first successful parse wins.
// Day-first numeric forms come before month-first ones, so "05-03-2024" is 5 March.
var formats = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 January, 2006",
	"2 Jan, 2006",

	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"1/2/2006",
	"1-2-2006",
	"1.2.2006",
	"2/1/06",
	"2-1-06",
	"2.1.06",
	"1/2/06",
	"1-2-06",
	"1.2.06",

	"2006-01-02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",

	"January 2006",
	"Jan 2006",
	"January, 2006",
	"Jan, 2006",
}

var (
	reOrdinal    = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reAbbrevDot  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\.`)
	reSept       = regexp.MustCompile(`(?i)\bsept\b`)
	reSpaceComma = regexp.MustCompile(`\s+,`)
	reDuration   = regexp.MustCompile(`(?i)(\d+)[\s-]*(month|year)s?\b`)
)

// Normalize parses a raw token against the known formats and returns the
// date at UTC midnight. ok is false when nothing matches.
func Normalize(raw string) (time.Time, bool) {
	s := clean(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeString is Normalize rendered as YYYY-MM-DD, or "" when unparseable.
func NormalizeString(raw string) string {
	t, ok := Normalize(raw)
	if !ok {
		return ""
	}
	return Format(t)
}

// Format renders t in the canonical layout.
func Format(t time.Time) string {
	return t.Format(Layout)
}

func clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, ".,;:")
	s = reSpaces.ReplaceAllString(s, " ")
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = reAbbrevDot.ReplaceAllString(s, "$1")
	s = reSept.ReplaceAllString(s, "Sep")
	s = reSpaceComma.ReplaceAllString(s, ",")
	return s
}

// Duration is a renewal period found in free text.
type Duration struct {
	Count int
	Unit  string // "month" | "year"
}

// Days converts the duration with the flat 30/365 day rule.
func (d Duration) Days() int {
	if d.Unit == "year" {
		return d.Count * DaysPerYear
	}
	return d.Count * DaysPerMonth
}

// FindDuration returns the first "<n> month(s)" or "<n> year(s)" phrase in text.
func FindDuration(text string) (Duration, bool) {
	m := reDuration.FindStringSubmatch(text)
	if m == nil {
		return Duration{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Duration{}, false
	}
	return Duration{Count: n, Unit: strings.ToLower(m[2])}, true
}

// InferEndDate adds the first duration found in renewal to start.
// ok is false when start is zero, renewal carries no duration, or the result
// falls after MaxYear.
func InferEndDate(start time.Time, renewal string) (time.Time, bool) {
	if start.IsZero() || strings.TrimSpace(renewal) == "" {
		return time.Time{}, false
	}
	d, ok := FindDuration(renewal)
	if !ok || d.Count > (MaxYear+1)*12 {
		return time.Time{}, false
	}
	end := start.AddDate(0, 0, d.Days())
	if end.Year() > MaxYear {
		return time.Time{}, false
	}
	return end, true
}
