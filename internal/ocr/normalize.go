package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reSoftBreak  = regexp.MustCompile(`([a-z])-\n([a-z])`)
)

var reBoxNoise = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)

// glyphs maps typographic forms common in PDF text layers to plain text.
var glyphs = strings.NewReplacer(
	"\u00a0", " ", // no-break space
	"\u2007", " ",
	"\u202f", " ",
	"\u00ad", "", // soft hyphen
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
	"\u2018", "'",
	"\u2019", "'",
	"\u201c", `"`,
	"\u201d", `"`,
)

// Normalize collapses noisy whitespace and pulls a word hyphenated at a line
// end back onto one line, hyphen kept. Other line breaks are kept; runs of
// blank lines collapse to one. Digits are never rewritten.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = glyphs.Replace(s)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reSoftBreak.ReplaceAllString(s, "$1-$2")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
