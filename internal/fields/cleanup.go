package fields

import (
	"regexp"
	"strings"
	"unicode"
)

var punctuationReplacer = strings.NewReplacer(
	"\u201c", `"`, "\u201d", `"`, "\u201e", `"`, "\u00ab", `"`, "\u00bb", `"`,
	"\u2018", "'", "\u2019", "'", "\u201a", "'", "\u2032", "'",
	"\u2013", "-", "\u2014", "-", "\u2012", "-", "\u2212", "-", "\u2010", "-",
	"\u00a0", " ", "\u2026", "...",
)

const safePunctuation = `.,;:!?()[]'"%$€£/&-@#+*`

var reWhitespace = regexp.MustCompile(`\s+`)

// Clean collapses whitespace, folds typographic quotes and dashes to ASCII,
// and drops characters outside letters, digits and a small punctuation set.
func Clean(s string) string {
	s = punctuationReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case strings.ContainsRune(safePunctuation, r):
			return r
		}
		return -1
	}, s)
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
