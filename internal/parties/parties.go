// Package parties cleans raw entity mentions into the ordered list of contract parties.
package parties

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultExclusions are substrings (lowercase) that mark a mention as boilerplate, not a party.
var DefaultExclusions = []string{
	"notify",
	"signature",
	"address",
	"service provider",
	"ownership",
}

var reInnerSpace = regexp.MustCompile(`\s+`)

// Normalizer applies trim, exclusion and case-insensitive dedup, in that order.
type Normalizer struct {
	exclusions []string
}

// NewNormalizer returns a Normalizer using exclusions, or DefaultExclusions when none are given.
func NewNormalizer(exclusions ...string) *Normalizer {
	if len(exclusions) == 0 {
		exclusions = DefaultExclusions
	}
	lower := make([]string, 0, len(exclusions))
	for _, e := range exclusions {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			lower = append(lower, e)
		}
	}
	return &Normalizer{exclusions: lower}
}

// Normalize returns party names in first-seen order. The first casing seen wins.
func (n *Normalizer) Normalize(mentions []string) []string {
	out := make([]string, 0, len(mentions))
	seen := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		name := trim(m)
		if n.excluded(name) {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func trim(s string) string {
	s = reInnerSpace.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,;:")
}

func (n *Normalizer) excluded(name string) bool {
	if name == "" || isNumeric(name) {
		return true
	}
	lower := strings.ToLower(name)
	for _, e := range n.exclusions {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) && !strings.ContainsRune(".,-/", r) {
			return false
		}
	}
	return true
}
