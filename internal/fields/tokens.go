package fields

import (
	"regexp"
	"strings"
)

const monthPattern = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`

// reDateToken matches date-shaped tokens: ISO, "Month D, Y", "D Month Y",
// numeric D[./-]M[./-]Y and "Month Y", tried in that order at each position.
var reDateToken = regexp.MustCompile(`(?i)` + strings.Join([]string{
	`\b\d{4}[./-]\d{1,2}[./-]\d{1,2}\b`,
	`\b` + monthPattern + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`,
	`\b\d{1,2}(?:st|nd|rd|th)?\s+` + monthPattern + `\.?,?\s+\d{4}\b`,
	`\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\b`,
	`\b` + monthPattern + `\.?,?\s+\d{4}\b`,
}, "|"))

// Token is a date-shaped substring and its byte offsets in the source text.
type Token struct {
	Text  string
	Start int
	End   int
}

// DateTokens returns every date-shaped token in text, in order of appearance.
func DateTokens(text string) []Token {
	locs := reDateToken.FindAllStringIndex(text, -1)
	out := make([]Token, 0, len(locs))
	for _, loc := range locs {
		out = append(out, Token{Text: text[loc[0]:loc[1]], Start: loc[0], End: loc[1]})
	}
	return out
}
